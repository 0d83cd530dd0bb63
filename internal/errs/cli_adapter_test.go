package errs

import (
	"errors"
	"testing"
)

func TestExitCodeForCategories(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := []struct {
		category Category
		want     int
	}{
		{CategoryUsage, 2},
		{CategoryAuth, 5},
		{CategoryPermission, 5},
		{CategoryBusy, 6},
		{CategoryCorruptBlob, 8},
		{CategoryCorruptDelta, 8},
		{CategoryManifestParse, 8},
		{CategoryPhantom, 9},
		{CategoryVerifyFailed, 10},
		{CategoryProtocol, 11},
		{CategoryNotFound, 12},
		{CategoryInternal, 70},
	}
	for _, c := range cases {
		got := a.ExitCodeFor(New(c.category, "x"))
		if got != c.want {
			t.Errorf("category %s: expected exit code %d, got %d", c.category, c.want, got)
		}
	}
}

func TestExitCodeForNilAndPlainError(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	if a.ExitCodeFor(nil) != 0 {
		t.Fatal("expected 0 for nil error")
	}
	if a.ExitCodeFor(errors.New("boom")) != 1 {
		t.Fatal("expected 1 for unclassified error")
	}
}

func TestFormatErrorVerbose(t *testing.T) {
	a := NewCLIErrorAdapter(true, nil)
	e := Wrap(errors.New("cause"), CategoryBusy, "locked")
	msg := a.FormatError(e)
	if msg != "busy: locked: cause" {
		t.Fatalf("unexpected verbose format: %s", msg)
	}
}

func TestFormatErrorTerse(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	e := New(CategoryUsage, "bad flag")
	if a.FormatError(e) != "bad flag" {
		t.Fatalf("unexpected terse usage format: %s", a.FormatError(e))
	}
	e2 := New(CategoryNotFound, "no such artifact")
	if a.FormatError(e2) != "not-found: no such artifact" {
		t.Fatalf("unexpected terse format: %s", a.FormatError(e2))
	}
}

func TestShouldLog(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	if !a.shouldLog(New(CategoryInternal, "x")) {
		t.Fatal("internal errors should always log")
	}
	if a.shouldLog(New(CategoryUsage, "x")) {
		t.Fatal("usage errors should not log without verbose")
	}
	verbose := NewCLIErrorAdapter(true, nil)
	if !verbose.shouldLog(New(CategoryUsage, "x")) {
		t.Fatal("verbose mode should always log")
	}
}
