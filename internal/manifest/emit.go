package manifest

import (
	"bytes"
	"strconv"
)

// Emit renders m back into its canonical card-stream byte form. For a
// Manifest parsed from canonical input (canonically quoted fields, all P
// and all Q fields each on one line, a blank line before the Z card, as
// every manifest this package writes has), Emit(m) reproduces the
// original bytes; other input forms that Parse accepts come back in
// canonical form instead.
func Emit(m *Manifest) []byte {
	var b bytes.Buffer

	if m.HasAttachment {
		writeLine(&b, 'A', quoteAll(m.Attachment))
	}
	if m.IsDelta {
		writeLine(&b, 'B', []string{m.Baseline})
	}
	if m.HasComment {
		writeLine(&b, 'C', []string{quoteField(m.Comment)})
	}
	if m.HasDateTime {
		writeLine(&b, 'D', []string{m.DateTime})
	}
	if m.HasEvent {
		writeLine(&b, 'E', []string{m.EventTimestamp, m.EventUUID})
	}
	for _, f := range m.Files {
		fields := []string{quoteField(f.Name)}
		if f.Hash != "" || f.Perm != "" || f.OldName != "" {
			fields = append(fields, f.Hash)
		}
		if f.Perm != "" || f.OldName != "" {
			fields = append(fields, f.Perm)
		}
		if f.OldName != "" {
			fields = append(fields, quoteField(f.OldName))
		}
		writeLine(&b, 'F', fields)
	}
	for _, j := range m.TicketChanges {
		fields := []string{quoteField(j.Name)}
		if j.Value != "" {
			fields = append(fields, quoteField(j.Value))
		}
		writeLine(&b, 'J', fields)
	}
	if m.HasTicketUUID {
		writeLine(&b, 'K', []string{m.TicketUUID})
	}
	if m.HasWikiTitle {
		writeLine(&b, 'L', []string{quoteField(m.WikiTitle)})
	}
	for _, uuid := range m.Members {
		writeLine(&b, 'M', []string{uuid})
	}
	if m.HasMimetype {
		writeLine(&b, 'N', []string{m.Mimetype})
	}
	if len(m.Parents) > 0 {
		writeLine(&b, 'P', m.Parents)
	}
	if len(m.Cherrypicks) > 0 {
		writeLine(&b, 'Q', m.Cherrypicks)
	}
	if m.HasFileMD5 {
		writeLine(&b, 'R', []string{m.FileMD5})
	}
	for _, t := range m.Tags {
		fields := []string{string(t.Op) + quoteField(t.Name), t.Target}
		if t.Value != "" {
			fields = append(fields, quoteField(t.Value))
		}
		writeLine(&b, 'T', fields)
	}
	if m.HasUser {
		writeLine(&b, 'U', []string{quoteField(m.User)})
	}
	if m.HasWikiBody {
		b.WriteByte('W')
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(len(m.WikiBody)))
		b.WriteByte('\n')
		b.Write(m.WikiBody)
		b.WriteByte('\n')
	}
	if m.HasTrailer {
		b.WriteByte('\n')
		writeLine(&b, 'Z', []string{m.Trailer})
	}
	return b.Bytes()
}

func writeLine(b *bytes.Buffer, card byte, fields []string) {
	b.WriteByte(card)
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f)
	}
	b.WriteByte('\n')
}

func quoteAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = quoteField(f)
	}
	return out
}
