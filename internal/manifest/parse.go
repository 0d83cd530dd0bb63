package manifest

import (
	"bytes"
	"strconv"
)

// repeatable cards may appear on consecutive lines without violating the
// strictly-ascending card-order rule.
var repeatableCard = map[byte]bool{
	'F': true, 'J': true, 'M': true, 'P': true, 'Q': true, 'T': true,
}

// Parse parses the textual content of an artifact into a Manifest,
// enforcing strictly ascending card order and per-card field shapes.
// Errors carry the 1-based line number of the offending card.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	pos := 0
	line := 1
	var lastCard byte

	for pos < len(data) {
		if data[pos] == '\n' {
			// Blank line separating the card stream from the Z trailer.
			pos++
			line++
			break
		}
		c := data[pos]
		if c < 'A' || c > 'Z' {
			return nil, errManifestfAt(line, "expected card letter, found %q", c)
		}
		if c == lastCard && !repeatableCard[c] {
			return nil, errManifestfAt(line, "card %c may not repeat", c)
		}
		if c < lastCard {
			return nil, errManifestfAt(line, "cards out of order: %c after %c", c, lastCard)
		}
		if c == 'Z' {
			break // trailer with no preceding blank line
		}

		if c == 'W' {
			nextPos, nextLine, err := parseWCard(m, data, pos, line)
			if err != nil {
				return nil, err
			}
			pos, line = nextPos, nextLine
			lastCard = c
			continue
		}

		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			return nil, errManifestfAt(line, "card %c missing trailing newline", c)
		}
		lineBytes := data[pos : pos+nl]
		if len(lineBytes) < 2 || lineBytes[1] != ' ' {
			if len(lineBytes) != 1 {
				return nil, errManifestfAt(line, "card %c: expected space after card letter", c)
			}
		}
		var rawFields string
		if len(lineBytes) > 1 {
			rawFields = string(lineBytes[2:])
		}
		fields := splitFields(rawFields)
		if err := applyCard(m, c, fields, line); err != nil {
			return nil, err
		}
		pos += nl + 1
		line++
		lastCard = c
	}

	if pos < len(data) && data[pos] == 'Z' {
		nl := bytes.IndexByte(data[pos:], '\n')
		var lineBytes []byte
		if nl < 0 {
			lineBytes = data[pos:]
		} else {
			lineBytes = data[pos : pos+nl]
		}
		if len(lineBytes) < 3 || lineBytes[1] != ' ' {
			return nil, errManifestfAt(line, "malformed Z card")
		}
		m.HasTrailer = true
		m.Trailer = string(lineBytes[2:])
	}

	return m, nil
}

func errManifestfAt(line int, format string, args ...any) error {
	return errManifestf("line %d: "+format, append([]any{line}, args...)...)
}

func parseWCard(m *Manifest, data []byte, pos, line int) (nextPos, nextLine int, err error) {
	nl := bytes.IndexByte(data[pos:], '\n')
	if nl < 0 {
		return 0, 0, errManifestfAt(line, "W card missing length newline")
	}
	header := data[pos : pos+nl]
	if len(header) < 3 || header[1] != ' ' {
		return 0, 0, errManifestfAt(line, "malformed W card header")
	}
	n, err := strconv.Atoi(string(header[2:]))
	if err != nil || n < 0 {
		return 0, 0, errManifestfAt(line, "malformed W card length")
	}
	bodyStart := pos + nl + 1
	if bodyStart+n > len(data) {
		return 0, 0, errManifestfAt(line, "W card body exceeds manifest length")
	}
	body := data[bodyStart : bodyStart+n]
	if bodyStart+n >= len(data) || data[bodyStart+n] != '\n' {
		return 0, 0, errManifestfAt(line, "W card body not newline-terminated")
	}
	m.HasWikiBody = true
	m.WikiBody = append([]byte(nil), body...)
	return bodyStart + n + 1, line + 2, nil
}
