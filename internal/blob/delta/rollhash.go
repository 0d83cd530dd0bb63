package delta

// windowSize is the minimum useful copy match length, and the width of the
// rolling hash window used to index the source during Create.
const windowSize = 16

const hashBase uint32 = 257

// windowPow is hashBase^(windowSize-1), used to remove the outgoing byte
// when rolling the hash forward by one position.
var windowPow = func() uint32 {
	p := uint32(1)
	for i := 0; i < windowSize-1; i++ {
		p *= hashBase
	}
	return p
}()

func windowHash(b []byte) uint32 {
	var h uint32
	for _, c := range b {
		h = h*hashBase + uint32(c)
	}
	return h
}

// rollHash advances a window hash by dropping outByte and admitting inByte.
func rollHash(h uint32, outByte, inByte byte) uint32 {
	h -= uint32(outByte) * windowPow
	h = h*hashBase + uint32(inByte)
	return h
}

// sourceIndex maps rolling-hash values to candidate offsets in a source
// buffer, built once per Create call.
type sourceIndex struct {
	offsets map[uint32][]int
}

func buildSourceIndex(base []byte) *sourceIndex {
	idx := &sourceIndex{offsets: make(map[uint32][]int)}
	if len(base) < windowSize {
		return idx
	}
	h := windowHash(base[:windowSize])
	idx.offsets[h] = append(idx.offsets[h], 0)
	for i := 1; i+windowSize <= len(base); i++ {
		h = rollHash(h, base[i-1], base[i+windowSize-1])
		idx.offsets[h] = append(idx.offsets[h], i)
	}
	return idx
}

// bestMatch finds the longest run in base starting at one of the candidate
// offsets for hash h that agrees with target starting at pos, breaking ties
// toward the earliest offset. Returns ok=false if no candidate reaches the
// minimum useful match length.
func (idx *sourceIndex) bestMatch(h uint32, base, target []byte, pos int) (offset, length int, ok bool) {
	for _, off := range idx.offsets[h] {
		l := matchLen(base, off, target, pos)
		if l < windowSize {
			continue
		}
		if l > length {
			offset, length, ok = off, l, true
		}
	}
	return
}

func matchLen(base []byte, boff int, target []byte, tpos int) int {
	max := len(base) - boff
	if m := len(target) - tpos; m < max {
		max = m
	}
	n := 0
	for n < max && base[boff+n] == target[tpos+n] {
		n++
	}
	return n
}
