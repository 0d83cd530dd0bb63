package xref

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/manifest"
)

// BuildTicket populates the derived rows for a ticket-change artifact: a
// single-commit "tkt-<uuid>" tagxref row and a 't' event row. Per §3's
// data model, the J-card field changes themselves are not materialized
// into a dedicated table here — reconstructing current ticket state from
// the ordered sequence of J-card changes is a ticket-view concern this
// core engine exposes the raw artifacts for, not a table this
// specification's derived-table set names.
func (b *Builder) BuildTicket(ctx context.Context, db DB, rid int64, m *manifest.Manifest) error {
	if manifest.Classify(m) != manifest.ArtifactTicket {
		return errNotClassified("ticket")
	}

	ticketTag := []manifest.TagOp{{Op: '+', Name: "tkt-" + m.TicketUUID, Target: "*"}}
	if err := b.applyTagOps(ctx, db, rid, ticketTag, m.DateTime); err != nil {
		return err
	}

	comment := ""
	if m.HasComment {
		comment = m.Comment
	}
	return insertEvent(ctx, db, rid, "t", m.DateTime, m.User, comment)
}
