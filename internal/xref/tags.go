package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/manifest"
)

// tagtypeFor maps a T-card operator to the tagxref.tagtype encoding of
// §3: '+' single-commit, '*' propagating, '-' cancel.
var tagtypeFor = map[byte]int{'+': 1, '*': 2, '-': 0}

// applyTagOps resolves and inserts one tagxref row per T card. sourceRid
// is the artifact declaring the tag (the commit or control artifact
// carrying the T card); each op's Target resolves to the tagged rid, "*"
// meaning "this artifact" (sourceRid itself). It also serves the
// synthetic single-commit tags BuildWiki/BuildTicket/BuildTechnote
// create for their namespaced tags (wiki-X, tkt-X).
func (b *Builder) applyTagOps(ctx context.Context, db DB, sourceRid int64, ops []manifest.TagOp, mtimeRaw string) error {
	mtime := parseMtime(mtimeRaw)
	for _, op := range ops {
		tagid, err := tagidFor(ctx, db, op.Name)
		if err != nil {
			return err
		}

		target := sourceRid
		if op.Target != "" && op.Target != "*" {
			target, err = b.ridForUUID(ctx, db, op.Target)
			if err != nil {
				return err
			}
		}

		tagtype, ok := tagtypeFor[op.Op]
		if !ok {
			continue // malformed operator already rejected by the parser; defensive no-op
		}

		if _, err := db.ExecContext(ctx, `
			INSERT INTO tagxref(tagid, rid, tagtype, srcid, value, mtime) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(tagid, rid) DO UPDATE SET tagtype = excluded.tagtype,
				srcid = excluded.srcid, value = excluded.value, mtime = excluded.mtime`,
			tagid, target, tagtype, sourceRid, op.Value, mtime); err != nil {
			return err
		}
	}
	return nil
}
