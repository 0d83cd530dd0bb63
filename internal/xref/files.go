package xref

import (
	"context"
	"database/sql"
	"errors"
)

// fileState is one filename's resolved position in a reconstructed tree:
// which blob rid currently holds its content and which filename id it is
// keyed by.
type fileState struct {
	fid  int64
	fnid int64
}

// effectiveTree reconstructs the full name -> blob mapping in effect at
// rid by walking mlink rows along the primary-parent chain from rid back
// to the root, taking the nearest (most recently recorded) fid for each
// filename and treating a fid=0 row as a deletion that removes the name
// from the tree (§4.2 "compared against the primary parent's file set ...
// inherited from F cards"). It relies on ancestor commits having already
// been built, which holds for ordinary forward ingest order; Rebuild
// processes rids in ascending order to preserve this.
func effectiveTree(ctx context.Context, db DB, rid int64) (map[string]fileState, error) {
	resolved := make(map[int64]bool)
	tree := make(map[string]fileState)
	cur := rid
	for cur != 0 {
		rows, err := db.QueryContext(ctx, `SELECT fid, fnid FROM mlink WHERE mid = ?`, cur)
		if err != nil {
			return nil, err
		}
		type entry struct{ fid, fnid int64 }
		var batch []entry
		for rows.Next() {
			var e entry
			if err := rows.Scan(&e.fid, &e.fnid); err != nil {
				rows.Close()
				return nil, err
			}
			batch = append(batch, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		for _, e := range batch {
			if resolved[e.fnid] {
				continue
			}
			resolved[e.fnid] = true
			if e.fid == 0 {
				continue // deleted at this point in history; name stays absent
			}
			name, err := nameForFnid(ctx, db, e.fnid)
			if err != nil {
				return nil, err
			}
			tree[name] = fileState{fid: e.fid, fnid: e.fnid}
		}

		parent, hasParent, err := primaryParentOf(ctx, db, cur)
		if err != nil {
			return nil, err
		}
		if !hasParent {
			break
		}
		cur = parent
	}
	return tree, nil
}

func nameForFnid(ctx context.Context, db DB, fnid int64) (string, error) {
	var name string
	row := db.QueryRowContext(ctx, `SELECT name FROM filename WHERE fnid = ?`, fnid)
	if err := row.Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}

func primaryParentOf(ctx context.Context, db DB, cid int64) (pid int64, ok bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT pid FROM plink WHERE cid = ? AND isprim = 1`, cid)
	switch scanErr := row.Scan(&pid); {
	case scanErr == nil:
		return pid, true, nil
	case errors.Is(scanErr, sql.ErrNoRows):
		return 0, false, nil
	default:
		return 0, false, scanErr
	}
}
