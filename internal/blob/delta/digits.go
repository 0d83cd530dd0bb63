package delta

// digitChars is the base-64 alphabet used for variable-length integers in
// the delta wire format: 0-9, A-Z, underscore, a-z, tilde.
const digitChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz~"

var digitValue [128]int8

func init() {
	for i := range digitValue {
		digitValue[i] = -1
	}
	for i := 0; i < len(digitChars); i++ {
		digitValue[digitChars[i]] = int8(i)
	}
}

// putVarInt appends the base-64 variable-length encoding of v to buf.
func putVarInt(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, digitChars[0])
	}
	var tmp [11]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = digitChars[v&0x3f]
		v >>= 6
	}
	return append(buf, tmp[i:]...)
}

// getVarInt parses a leading run of base-64 digits from s, returning the
// decoded value and the remainder of s past the digits. An empty digit run
// is an error.
func getVarInt(s []byte) (uint64, []byte, error) {
	var v uint64
	i := 0
	for i < len(s) {
		c := s[i]
		if c >= 128 {
			break
		}
		d := digitValue[c]
		if d < 0 {
			break
		}
		v = v<<6 | uint64(d)
		i++
	}
	if i == 0 {
		return 0, s, errMalformed
	}
	return v, s[i:], nil
}
