package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/manifest"
)

// BuildAttachment populates the derived rows for an attachment artifact:
// an 'f' event row. Attachments carry no tag of their own; they are
// discovered by walking forward from the ticket or wiki page they
// attach to (the first A-card field, per §4.2's card table), which is a
// query-time join this package does not need to materialize.
func (b *Builder) BuildAttachment(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactAttachment {
		return errNotClassified("attachment")
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	return insertEvent(ctx, db, rid, "f", m.DateTime, m.User, comment)
}
