package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/manifest"
)

// BuildWiki populates the derived rows for a wiki-page artifact: a
// single-commit "wiki-<title>" tagxref row pointing at this version, and
// a 'w' event row.
func (b *Builder) BuildWiki(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactWiki {
		return errNotClassified("wiki")
	}

	wikiTag := []manifest.TagOp{{Op: '+', Name: "wiki-" + m.WikiTitle, Target: "*"}}
	if err := b.applyTagOps(ctx, db, rid, wikiTag, m.DateTime); err != nil {
		return err
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	return insertEvent(ctx, db, rid, "w", m.DateTime, m.User, comment)
}

// BuildTechnote populates the derived rows for a technote (event)
// artifact: a single-commit "event-<uuid>" tagxref row, and an 'e' event
// row timestamped by the E card rather than the D card (technotes may
// backdate their display time independent of submission time).
func (b *Builder) BuildTechnote(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactTechnote {
		return errNotClassified("technote")
	}

	eventTag := []manifest.TagOp{{Op: '+', Name: "event-" + m.EventUUID, Target: "*"}}
	if err := b.applyTagOps(ctx, db, rid, eventTag, m.EventTimestamp); err != nil {
		return err
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	return insertEvent(ctx, db, rid, "e", m.EventTimestamp, m.User, comment)
}
