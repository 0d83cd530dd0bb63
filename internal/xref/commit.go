package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/graph"
	"github.com/fossilgo/fossilgo/internal/manifest"
)

// BuildCommit populates plink, mlink, tagxref, event, and leaf for a
// commit artifact (§4.2 "Cross-reference builder"): one plink row per
// parent, one mlink row per file-level transition against the primary
// parent's reconstructed tree, tagxref rows for every T card, an 'ci'
// event row, and a leaf_check for this commit and each of its parents.
func (b *Builder) BuildCommit(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactCommit {
		return errNotClassified("commit")
	}

	mtime := parseMtime(m.DateTime)
	var primaryParentRid int64
	parentRids := make([]int64, 0, len(m.Parents))
	for i, parentUUID := range m.Parents {
		pid, err := b.ridForUUID(ctx, db, parentUUID)
		if err != nil {
			return err
		}
		parentRids = append(parentRids, pid)
		if i == 0 {
			primaryParentRid = pid
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO plink(pid, cid, isprim, mtime) VALUES (?, ?, ?, ?)
			ON CONFLICT(pid, cid) DO UPDATE SET isprim = excluded.isprim, mtime = excluded.mtime`,
			pid, rid, i == 0, mtime); err != nil {
			return err
		}
	}

	parentTree := map[string]fileState{}
	if primaryParentRid != 0 {
		var err error
		parentTree, err = effectiveTree(ctx, db, primaryParentRid)
		if err != nil {
			return err
		}
	}

	for _, f := range m.Files {
		if err := b.buildMlinkRow(ctx, db, rid, f, parentTree); err != nil {
			return err
		}
	}

	if err := b.applyTagOps(ctx, db, rid, m.Tags, m.DateTime); err != nil {
		return err
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	if err := insertEvent(ctx, db, rid, "ci", m.DateTime, m.User, comment); err != nil {
		return err
	}

	if err := graph.LeafCheck(ctx, db, rid); err != nil {
		return err
	}
	for _, pid := range parentRids {
		if err := graph.LeafCheck(ctx, db, pid); err != nil {
			return err
		}
	}
	return nil
}

// buildMlinkRow derives and inserts the single mlink row for file entry
// f against parentTree, the primary parent's reconstructed name->blob
// mapping. A deletion (empty hash) records fid=0; a rename (OldName set)
// records pfnid against the old name; an ordinary add/modify inherits
// pid from the parent's current fid under the same name, 0 if new.
func (b *Builder) buildMlinkRow(ctx context.Context, db DB, mid int64, f manifest.FileEntry, parentTree map[string]fileState) error {
	fnid, err := fnidFor(ctx, db, f.Name)
	if err != nil {
		return err
	}

	var fid int64
	if f.Hash != "" {
		fid, err = b.ridForUUID(ctx, db, f.Hash)
		if err != nil {
			return err
		}
	}

	var priorFid, pfnid int64
	if f.OldName != "" {
		pfnid, err = fnidFor(ctx, db, f.OldName)
		if err != nil {
			return err
		}
		if prior, ok := parentTree[f.OldName]; ok {
			priorFid = prior.fid
		}
	} else if prior, ok := parentTree[f.Name]; ok {
		priorFid = prior.fid
		pfnid = fnid
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO mlink(mid, fid, pid, fnid, pfnid, mperm) VALUES (?, ?, ?, ?, ?, ?)`,
		mid, fid, priorFid, fnid, pfnid, f.Perm)
	return err
}
