package manifest

func applyCard(m *Manifest, card byte, fields []string, line int) error {
	uq := func(s string) (string, error) { return unquoteField(s) }

	switch card {
	case 'A':
		m.HasAttachment = true
		decoded := make([]string, len(fields))
		for i, f := range fields {
			v, err := uq(f)
			if err != nil {
				return errManifestfAt(line, "A card: %v", err)
			}
			decoded[i] = v
		}
		m.Attachment = decoded

	case 'B':
		if len(fields) != 1 {
			return errManifestfAt(line, "B card requires exactly one field")
		}
		m.IsDelta = true
		m.Baseline = fields[0]

	case 'C':
		if len(fields) != 1 {
			return errManifestfAt(line, "C card requires exactly one field")
		}
		v, err := uq(fields[0])
		if err != nil {
			return errManifestfAt(line, "C card: %v", err)
		}
		m.HasComment = true
		m.Comment = v

	case 'D':
		if len(fields) != 1 {
			return errManifestfAt(line, "D card requires exactly one field")
		}
		m.HasDateTime = true
		m.DateTime = fields[0]

	case 'E':
		if len(fields) != 2 {
			return errManifestfAt(line, "E card requires timestamp and uuid fields")
		}
		m.HasEvent = true
		m.EventTimestamp = fields[0]
		m.EventUUID = fields[1]

	case 'F':
		if len(fields) < 1 || len(fields) > 4 {
			return errManifestfAt(line, "F card has 1-4 fields")
		}
		name, err := uq(fields[0])
		if err != nil {
			return errManifestfAt(line, "F card name: %v", err)
		}
		if len(m.Files) > 0 && name <= m.Files[len(m.Files)-1].Name {
			return errManifestfAt(line, "F card names out of order: %q after %q", name, m.Files[len(m.Files)-1].Name)
		}
		fe := FileEntry{Name: name}
		if len(fields) >= 2 {
			fe.Hash = fields[1]
		}
		if len(fields) >= 3 {
			fe.Perm = fields[2]
		}
		if len(fields) >= 4 {
			oldName, err := uq(fields[3])
			if err != nil {
				return errManifestfAt(line, "F card old name: %v", err)
			}
			fe.OldName = oldName
		}
		m.Files = append(m.Files, fe)

	case 'J':
		if len(fields) < 1 || len(fields) > 2 {
			return errManifestfAt(line, "J card has 1-2 fields")
		}
		name, err := uq(fields[0])
		if err != nil {
			return errManifestfAt(line, "J card name: %v", err)
		}
		tc := TicketChange{Name: name}
		if len(fields) == 2 {
			val, err := uq(fields[1])
			if err != nil {
				return errManifestfAt(line, "J card value: %v", err)
			}
			tc.Value = val
		}
		m.TicketChanges = append(m.TicketChanges, tc)

	case 'K':
		if len(fields) != 1 {
			return errManifestfAt(line, "K card requires exactly one field")
		}
		m.HasTicketUUID = true
		m.TicketUUID = fields[0]

	case 'L':
		if len(fields) != 1 {
			return errManifestfAt(line, "L card requires exactly one field")
		}
		v, err := uq(fields[0])
		if err != nil {
			return errManifestfAt(line, "L card: %v", err)
		}
		m.HasWikiTitle = true
		m.WikiTitle = v

	case 'M':
		if len(fields) != 1 {
			return errManifestfAt(line, "M card requires exactly one field")
		}
		m.Members = append(m.Members, fields[0])

	case 'N':
		if len(fields) != 1 {
			return errManifestfAt(line, "N card requires exactly one field")
		}
		m.HasMimetype = true
		m.Mimetype = fields[0]

	case 'P':
		if len(fields) < 1 {
			return errManifestfAt(line, "P card requires at least one field")
		}
		m.Parents = append(m.Parents, fields...)

	case 'Q':
		if len(fields) < 1 {
			return errManifestfAt(line, "Q card requires at least one field")
		}
		m.Cherrypicks = append(m.Cherrypicks, fields...)

	case 'R':
		if len(fields) != 1 {
			return errManifestfAt(line, "R card requires exactly one field")
		}
		m.HasFileMD5 = true
		m.FileMD5 = fields[0]

	case 'T':
		if len(fields) < 2 || len(fields) > 3 {
			return errManifestfAt(line, "T card has 2-3 fields")
		}
		opname := fields[0]
		if len(opname) < 2 {
			return errManifestfAt(line, "T card tag spec too short")
		}
		op := opname[0]
		if op != '+' && op != '-' && op != '*' {
			return errManifestfAt(line, "T card has unrecognized operator %q", op)
		}
		name, err := uq(opname[1:])
		if err != nil {
			return errManifestfAt(line, "T card tag name: %v", err)
		}
		if len(m.Tags) > 0 && name <= m.Tags[len(m.Tags)-1].Name {
			return errManifestfAt(line, "T card tag names out of order: %q after %q", name, m.Tags[len(m.Tags)-1].Name)
		}
		t := TagOp{Op: op, Name: name, Target: fields[1]}
		if len(fields) == 3 {
			val, err := uq(fields[2])
			if err != nil {
				return errManifestfAt(line, "T card value: %v", err)
			}
			t.Value = val
		}
		m.Tags = append(m.Tags, t)

	case 'U':
		if len(fields) != 1 {
			return errManifestfAt(line, "U card requires exactly one field")
		}
		v, err := uq(fields[0])
		if err != nil {
			return errManifestfAt(line, "U card: %v", err)
		}
		m.HasUser = true
		m.User = v

	default:
		return errManifestfAt(line, "unrecognized card %c", card)
	}
	return nil
}
