package delta

import (
	"bytes"
	"testing"

	"github.com/fossilgo/fossilgo/internal/errs"
)

func TestRoundTripSmall(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog, repeatedly and often")
	target := []byte("the quick brown cat jumps over the lazy dog, repeatedly and often, twice")

	d := Create(base, target)
	got, err := Apply(base, d)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Fatalf("round trip mismatch: got %q want %q", got, target)
	}
}

func TestRoundTripIdentical(t *testing.T) {
	base := bytes.Repeat([]byte("x"), 500)
	d := Create(base, base)
	got, err := Apply(base, d)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Equal(got, base) {
		t.Fatal("identical round trip mismatch")
	}
}

func TestRoundTripEmptyBase(t *testing.T) {
	target := []byte("brand new content with no prior base to copy from")
	d := Create(nil, target)
	got, err := Apply(nil, d)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Fatal("empty-base round trip mismatch")
	}
}

func TestRoundTripEmptyTarget(t *testing.T) {
	base := []byte("some base content")
	d := Create(base, nil)
	got, err := Apply(base, d)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(got))
	}
}

// TestDeltaRoundTripLargeWithSmallEdit mirrors the specification's delta
// round-trip property: a small interior edit to a large, highly
// compressible buffer should produce a delta much smaller than the buffer.
func TestDeltaRoundTripLargeWithSmallEdit(t *testing.T) {
	a := make([]byte, 10000)
	b := make([]byte, 10000)
	copy(b, a)
	copy(b[5000:5010], []byte("ABCDEFGHIJ"))

	d := Create(a, b)
	got, err := Apply(a, d)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Equal(got, b) {
		t.Fatal("large round trip mismatch")
	}
	if len(d) >= 100 {
		t.Fatalf("expected delta under 100 bytes, got %d", len(d))
	}
}

func TestApplyRejectsCorruptSizeHeader(t *testing.T) {
	_, err := Apply([]byte("base"), []byte("not-a-number\n;0"))
	if !errs.IsCategory(err, errs.CategoryCorruptDelta) {
		t.Fatalf("expected CategoryCorruptDelta, got %v", err)
	}
}

func TestApplyRejectsBadChecksum(t *testing.T) {
	base := []byte("abcdefghijklmnopqrstuvwxyz0123456789")
	target := []byte("abcdefghijklmnopqrstuvwxyz0123456789!!!")
	d := Create(base, target)
	// Corrupt the checksum digit just before the end.
	corrupted := append([]byte(nil), d...)
	corrupted[len(corrupted)-1] = '~'
	if bytes.Equal(corrupted, d) {
		t.Skip("corruption did not change delta bytes")
	}
	_, err := Apply(base, corrupted)
	if err == nil {
		t.Fatal("expected error for corrupted checksum")
	}
	if !errs.IsCategory(err, errs.CategoryCorruptDelta) {
		t.Fatalf("expected CategoryCorruptDelta, got %v", err)
	}
}

func TestApplyRejectsOutOfRangeCopy(t *testing.T) {
	// Declares a copy of 10 bytes at offset 1000 from a base much too short.
	var bad []byte
	bad = putVarInt(bad, 10)
	bad = append(bad, '\n')
	bad = putVarInt(bad, 10)
	bad = append(bad, '@')
	bad = putVarInt(bad, 1000)
	bad = append(bad, ',')
	bad = append(bad, ';')
	bad = putVarInt(bad, 0)

	_, err := Apply([]byte("short base"), bad)
	if !errs.IsCategory(err, errs.CategoryCorruptDelta) {
		t.Fatalf("expected CategoryCorruptDelta, got %v", err)
	}
}

func TestOutputSize(t *testing.T) {
	base := []byte("0123456789")
	target := []byte("0123456789abcdef")
	d := Create(base, target)
	n, err := OutputSize(d)
	if err != nil {
		t.Fatalf("output size: %v", err)
	}
	if n != int64(len(target)) {
		t.Fatalf("expected %d, got %d", len(target), n)
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 63, 64, 4095, 1 << 20, 1 << 40} {
		enc := putVarInt(nil, v)
		got, rest, err := getVarInt(enc)
		if err != nil {
			t.Fatalf("getVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("roundtrip mismatch: put %d got %d", v, got)
		}
		if len(rest) != 0 {
			t.Fatalf("unexpected remainder %q", rest)
		}
	}
}
