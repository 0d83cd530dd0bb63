package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/graph"
)

// Rebuild recomputes every derived table (plink, mlink, filename, tag,
// tagxref, event, leaf) from Blob+Delta content alone (§3 "Derived rows
// ... are deterministically rebuildable", §5 "Rebuild must reproduce
// byte-identical derived rows", §8 clone-equivalence property). Callers
// supply rids in ascending order so that a commit's primary parent has
// always already been (re)built by the time effectiveTree needs it.
func (b *Builder) Rebuild(ctx context.Context, db DB, rids []int64) error {
	for _, table := range []string{"plink", "mlink", "filename", "tag", "tagxref", "event", "leaf"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errs.Wrap(err, errs.CategoryInternal, "rebuild: clear "+table)
		}
	}

	for _, rid := range rids {
		content, err := b.store.Get(ctx, db, rid)
		if err != nil {
			if errs.IsCategory(err, errs.CategoryPhantom) {
				continue // phantom rows carry no artifact to cross-reference yet
			}
			return err
		}
		var uuid string // Build does not itself need the uuid; reserved for future logging.
		if err := b.Build(ctx, db, rid, uuid, content); err != nil {
			if errs.IsCategory(err, errs.CategoryManifestParse) {
				continue // not a manifest (e.g. a plain file blob): no derived rows
			}
			return err
		}
	}

	return graph.LeafRebuild(ctx, db)
}
