package hashpolicy

import "testing"

func TestValidate(t *testing.T) {
	sha1name := HashSHA1([]byte("hello\n"))
	sha3name := HashSHA3([]byte("hello\n"))

	if algo := Validate(sha1name); algo != AlgoSHA1 {
		t.Fatalf("expected AlgoSHA1, got %v", algo)
	}
	if algo := Validate(sha3name); algo != AlgoSHA3 {
		t.Fatalf("expected AlgoSHA3, got %v", algo)
	}
	if algo := Validate("not-hex-and-wrong-length"); algo != AlgoError {
		t.Fatalf("expected AlgoError, got %v", algo)
	}
	if algo := Validate(""); algo != AlgoError {
		t.Fatalf("expected AlgoError for empty string, got %v", algo)
	}
	upper := "F572D396FAE9206628714FB2CE00F72E94F2258F"
	if algo := Validate(upper); algo != AlgoError {
		t.Fatalf("expected AlgoError for uppercase hex, got %v", algo)
	}
}

func TestKnownSHA1Vector(t *testing.T) {
	got := HashSHA1([]byte("hello\n"))
	want := "f572d396fae9206628714fb2ce00f72e94f2258f"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestVerifyHash(t *testing.T) {
	content := []byte("hello\n")
	uuid := HashSHA1(content)
	if !VerifyHash(content, uuid) {
		t.Fatal("expected verification to succeed")
	}
	if VerifyHash([]byte("goodbye\n"), uuid) {
		t.Fatal("expected verification to fail for mismatched content")
	}
	if VerifyHash(content, "bogus") {
		t.Fatal("expected verification to fail for malformed uuid")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []string{"sha1", "auto", "sha3", "sha3-only", "shun-sha1"} {
		if _, err := ParseMode(m); err != nil {
			t.Fatalf("expected %s to parse, got error: %v", m, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestAutoPromotion(t *testing.T) {
	p := NewPolicy(ModeAuto)
	sha1name := HashSHA1([]byte("a"))
	if changed := p.ObserveArtifact(sha1name); changed {
		t.Fatal("observing a sha1 artifact must not change auto mode")
	}
	if p.Mode() != ModeAuto {
		t.Fatal("expected mode to remain auto")
	}

	sha3name := HashSHA3([]byte("b"))
	if changed := p.ObserveArtifact(sha3name); !changed {
		t.Fatal("observing a sha3 artifact must promote auto -> sha3")
	}
	if p.Mode() != ModeSHA3 {
		t.Fatalf("expected mode sha3 after promotion, got %s", p.Mode())
	}

	// Promotion is one-way: subsequent sha1 observation does not revert it.
	if changed := p.ObserveArtifact(HashSHA1([]byte("c"))); changed {
		t.Fatal("promotion must be one-way")
	}
	if p.Mode() != ModeSHA3 {
		t.Fatal("expected mode to stay sha3")
	}
}

func TestNonAutoModeNeverPromotes(t *testing.T) {
	p := NewPolicy(ModeSHA1)
	if changed := p.ObserveArtifact(HashSHA3([]byte("x"))); changed {
		t.Fatal("non-auto modes must never change on ObserveArtifact")
	}
	if p.Mode() != ModeSHA1 {
		t.Fatal("expected mode to remain sha1")
	}
}

func TestNewArtifactAlgo(t *testing.T) {
	if NewPolicy(ModeSHA1).NewArtifactAlgo() != AlgoSHA1 {
		t.Fatal("sha1 mode should name new artifacts with sha1")
	}
	for _, m := range []Mode{ModeAuto, ModeSHA3, ModeSHA3Only, ModeShunSHA1} {
		if NewPolicy(m).NewArtifactAlgo() != AlgoSHA3 {
			t.Fatalf("mode %s should name new artifacts with sha3", m)
		}
	}
}

func TestAcceptOnSync(t *testing.T) {
	shun := NewPolicy(ModeShunSHA1)
	sha1name := HashSHA1([]byte("z"))
	sha3name := HashSHA3([]byte("z"))

	if shun.AcceptOnSync(sha1name, false) {
		t.Fatal("shun-sha1 must refuse sha1 artifacts outside of clone")
	}
	if !shun.AcceptOnSync(sha1name, true) {
		t.Fatal("shun-sha1 must accept sha1 artifacts during clone")
	}
	if !shun.AcceptOnSync(sha3name, false) {
		t.Fatal("shun-sha1 must always accept sha3 artifacts")
	}
	if shun.AcceptOnSync("garbage", false) {
		t.Fatal("malformed uuid must never be accepted")
	}

	sha3mode := NewPolicy(ModeSHA3)
	if !sha3mode.AcceptOnSync(sha1name, false) {
		t.Fatal("sha3 mode accepts legacy sha1 artifacts on sync")
	}
}

func TestAcceptForNaming(t *testing.T) {
	only := NewPolicy(ModeSHA3Only)
	if only.AcceptForNaming(AlgoSHA1) {
		t.Fatal("sha3-only must reject sha1 for new content naming")
	}
	if !only.AcceptForNaming(AlgoSHA3) {
		t.Fatal("sha3-only must accept sha3")
	}
	sha3mode := NewPolicy(ModeSHA3)
	if !sha3mode.AcceptForNaming(AlgoSHA1) {
		t.Fatal("sha3 mode allows reusing legacy sha1 names")
	}
}
