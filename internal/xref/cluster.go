package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/manifest"
)

// BuildCluster is a deliberate no-op over the derived tables: per §4.2,
// "Cluster artifacts have no derived tables but drive the unclustered
// set used by sync." internal/sync consumes a cluster's M-card member
// list directly from the parsed manifest when deciding what to
// acknowledge; xref's only role is validating that it classifies.
func (b *Builder) BuildCluster(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactCluster {
		return errNotClassified("cluster")
	}
	return nil
}

// BuildControl populates the derived rows for a tag-only control
// artifact: one tagxref row per T card (resolved against its own
// explicit target, since a control artifact has no "this artifact" use
// case the way a commit's own tags do) and a 'g' event row.
func (b *Builder) BuildControl(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactControl {
		return errNotClassified("control")
	}
	if err := b.applyTagOps(ctx, db, rid, m.Tags, m.DateTime); err != nil {
		return err
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	return insertEvent(ctx, db, rid, "g", m.DateTime, m.User, comment)
}
