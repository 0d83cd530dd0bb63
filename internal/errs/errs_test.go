package errs

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(CategoryUsage, "bad flag")
	if e.Error() != "usage: bad flag" {
		t.Fatalf("unexpected message: %s", e.Error())
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("disk full")
	e := Wrap(cause, CategoryBusy, "write failed")
	if e.Error() != "busy: write failed: disk full" {
		t.Fatalf("unexpected message: %s", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to unwrap to cause")
	}
}

func TestWithField(t *testing.T) {
	e := New(CategoryNotFound, "missing").WithField("rid", int64(7))
	if e.Fields["rid"] != int64(7) {
		t.Fatalf("expected field rid=7, got %v", e.Fields["rid"])
	}
}

func TestIsCategory(t *testing.T) {
	e := New(CategoryProtocol, "oops")
	if !IsCategory(e, CategoryProtocol) {
		t.Fatal("expected category match")
	}
	if IsCategory(e, CategoryUsage) {
		t.Fatal("expected category mismatch")
	}
	if IsCategory(errors.New("plain"), CategoryUsage) {
		t.Fatal("plain errors never match a category")
	}
}

func TestIsRetryable(t *testing.T) {
	r := Retryable(CategoryBusy, "locked")
	if !IsRetryable(r) {
		t.Fatal("expected retryable")
	}
	nr := New(CategoryUsage, "bad")
	if IsRetryable(nr) {
		t.Fatal("expected not retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are never retryable")
	}
}

func TestGetCategory(t *testing.T) {
	if GetCategory(New(CategoryAuth, "x")) != CategoryAuth {
		t.Fatal("expected CategoryAuth")
	}
	if GetCategory(errors.New("plain")) != CategoryInternal {
		t.Fatal("expected plain errors to classify as internal")
	}
}

func TestBusyHelper(t *testing.T) {
	e := Busy("database is locked")
	if !e.Retryable || e.Category != CategoryBusy {
		t.Fatal("expected retryable busy error")
	}
}

func TestAssertPanicsOnFalse(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Assert(false, "invariant %s broken", "x")
}

func TestAssertNoPanicOnTrue(t *testing.T) {
	Assert(true, "never triggered")
}
