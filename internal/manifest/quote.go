package manifest

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// quoteField encodes a field value using the manifest grammar's escape
// rules so that it can never contain a raw space, tab, newline, or
// carriage return: those and backslash itself are backslash-escaped.
func quoteField(s string) string {
	if !strings.ContainsAny(s, " \t\n\r\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			b.WriteString(`\s`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unquoteField reverses quoteField, rejecting a trailing unmatched
// backslash, an unrecognized escape, or a decoded value that is not
// well-formed UTF-8 (comment and title text, §4.2, must decode
// cleanly so downstream rendering never has to guess an encoding).
func unquoteField(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, validUTF8(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errManifestf("trailing backslash in quoted field")
		}
		switch s[i] {
		case 's':
			b.WriteByte(' ')
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", errManifestf("unrecognized escape \\%c", s[i])
		}
	}
	out := b.String()
	return out, validUTF8(out)
}

// validUTF8 rejects ill-formed byte sequences by round-tripping
// through golang.org/x/text's strict UTF-8 decoder, which errors
// instead of silently substituting U+FFFD the way stdlib's
// unicode/utf8 helpers only report on.
func validUTF8(s string) error {
	if _, _, err := transform.String(unicode.UTF8Strict.NewDecoder(), s); err != nil {
		return errManifestf("invalid UTF-8 in quoted field: %v", err)
	}
	return nil
}

// splitFields splits a card's field bytes on single raw spaces. Quoted
// encoding guarantees a real space never appears inside a field, so this
// split is unambiguous.
func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}

func joinFields(fields []string) string {
	return strings.Join(fields, " ")
}
