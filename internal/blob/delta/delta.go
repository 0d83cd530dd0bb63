// Package delta implements the artifact engine's delta compression codec:
// a textual, line-oriented format that expresses one byte sequence as a
// patch against another. The format is wire-observable (it is exchanged
// verbatim during sync) and is reproduced here token-for-token: a
// base-64 size header, COPY (N@M,) and INSERT (N:bytes) segments, and a
// trailing checksum.
package delta

import (
	"errors"

	"github.com/fossilgo/fossilgo/internal/errs"
)

var errMalformed = errors.New("delta: malformed token")

// Create returns a delta that transforms base into target. The result is
// always valid input to Apply(base, result); it is not guaranteed to be the
// globally smallest possible delta, only a greedy approximation produced by
// a single left-to-right scan with longest-match lookahead.
func Create(base, target []byte) []byte {
	out := make([]byte, 0, len(target)/4+32)
	out = putVarInt(out, uint64(len(target)))
	out = append(out, '\n')

	if len(base) < windowSize || len(target) < windowSize {
		out = emitInsert(out, target)
		return finishDelta(out, target)
	}

	idx := buildSourceIndex(base)
	pos := 0
	litStart := 0
	var h uint32
	haveHash := false

	for pos+windowSize <= len(target) {
		if !haveHash {
			h = windowHash(target[pos : pos+windowSize])
			haveHash = true
		}
		if off, length, ok := idx.bestMatch(h, base, target, pos); ok {
			if litStart < pos {
				out = emitInsert(out, target[litStart:pos])
			}
			out = emitCopy(out, length, off)
			pos += length
			litStart = pos
			haveHash = false
			continue
		}
		if pos+windowSize < len(target) {
			h = rollHash(h, target[pos], target[pos+windowSize])
		} else {
			haveHash = false
		}
		pos++
	}
	if litStart < len(target) {
		out = emitInsert(out, target[litStart:])
	}
	return finishDelta(out, target)
}

func emitInsert(out []byte, lit []byte) []byte {
	if len(lit) == 0 {
		return out
	}
	out = putVarInt(out, uint64(len(lit)))
	out = append(out, ':')
	out = append(out, lit...)
	return out
}

func emitCopy(out []byte, length, offset int) []byte {
	out = putVarInt(out, uint64(length))
	out = append(out, '@')
	out = putVarInt(out, uint64(offset))
	out = append(out, ',')
	return out
}

func finishDelta(out []byte, target []byte) []byte {
	out = append(out, ';')
	out = putVarInt(out, uint64(checksum(target)))
	return out
}

// Apply reconstructs the target bytes a delta was created from, given the
// same base the delta was created against. It returns a CorruptDelta error
// (via internal/errs) on any malformed token, out-of-range copy, declared
// size mismatch, or checksum failure.
func Apply(base, delta []byte) ([]byte, error) {
	size, rest, err := getVarInt(delta)
	if err != nil {
		return nil, errs.CorruptDelta("missing size header")
	}
	if len(rest) == 0 || rest[0] != '\n' {
		return nil, errs.CorruptDelta("size header not newline-terminated")
	}
	rest = rest[1:]

	out := make([]byte, 0, size)
	for {
		if len(rest) == 0 {
			return nil, errs.CorruptDelta("delta stream ends before checksum")
		}
		if rest[0] == ';' {
			cksum, _, err := getVarInt(rest[1:])
			if err != nil {
				return nil, errs.CorruptDelta("malformed checksum token")
			}
			if uint64(len(out)) != size {
				return nil, errs.CorruptDelta("reconstructed size disagrees with declared size")
			}
			if checksum(out) != uint32(cksum) {
				return nil, errs.CorruptDelta("checksum mismatch")
			}
			return out, nil
		}

		n, rest2, err := getVarInt(rest)
		if err != nil {
			return nil, errs.CorruptDelta("malformed segment length")
		}
		if len(rest2) == 0 {
			return nil, errs.CorruptDelta("truncated segment")
		}
		switch rest2[0] {
		case '@':
			off, rest3, err := getVarInt(rest2[1:])
			if err != nil {
				return nil, errs.CorruptDelta("malformed copy offset")
			}
			if len(rest3) == 0 || rest3[0] != ',' {
				return nil, errs.CorruptDelta("copy segment missing trailing comma")
			}
			rest = rest3[1:]
			if off+n > uint64(len(base)) {
				return nil, errs.CorruptDelta("copy range exceeds source bounds")
			}
			if uint64(len(out))+n > size {
				return nil, errs.CorruptDelta("copy exceeds declared output size")
			}
			out = append(out, base[off:off+n]...)
		case ':':
			lit := rest2[1:]
			if uint64(len(lit)) < n {
				return nil, errs.CorruptDelta("insert segment truncated")
			}
			if uint64(len(out))+n > size {
				return nil, errs.CorruptDelta("insert exceeds declared output size")
			}
			out = append(out, lit[:n]...)
			rest = lit[n:]
		default:
			return nil, errs.CorruptDelta("unrecognized segment token")
		}
	}
}

// OutputSize returns the declared reconstructed size of a delta without
// applying it, or an error if the size header is malformed.
func OutputSize(delta []byte) (int64, error) {
	size, rest, err := getVarInt(delta)
	if err != nil || len(rest) == 0 || rest[0] != '\n' {
		return 0, errs.CorruptDelta("missing or malformed size header")
	}
	return int64(size), nil
}
