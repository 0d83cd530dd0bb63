// Package hashpolicy implements the SHA1 <-> SHA3-256 artifact-naming
// policy: hash-name validation, content verification, and the policy
// modes governing which algorithm is used to name newly created
// artifacts and whether legacy SHA1 names remain acceptable.
package hashpolicy

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// Algo identifies a hash-name algorithm.
type Algo int

const (
	// AlgoError means the candidate string is not a well-formed hash name.
	AlgoError Algo = iota
	// AlgoSHA1 is the legacy 40-hex-character naming algorithm.
	AlgoSHA1
	// AlgoSHA3 is the 64-hex-character SHA3-256 naming algorithm.
	AlgoSHA3
)

const (
	sha1Len = 40
	sha3Len = 64
)

// String renders the algorithm's canonical name.
func (a Algo) String() string {
	switch a {
	case AlgoSHA1:
		return "sha1"
	case AlgoSHA3:
		return "sha3"
	default:
		return "error"
	}
}

// Validate classifies a candidate hash name by length and hex correctness,
// mirroring hname_validate: length must be exactly 40 or 64 and every byte
// must be a lowercase hex digit.
func Validate(name string) Algo {
	var want int
	switch len(name) {
	case sha1Len:
		want = sha1Len
	case sha3Len:
		want = sha3Len
	default:
		return AlgoError
	}
	for i := 0; i < want; i++ {
		c := name[i]
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			return AlgoError
		}
	}
	if want == sha1Len {
		return AlgoSHA1
	}
	return AlgoSHA3
}

// HashSHA1 returns the lowercase hex SHA1 digest of content.
func HashSHA1(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

// HashSHA3 returns the lowercase hex SHA3-256 digest of content.
func HashSHA3(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ComputeHash computes content's hash name under the given algorithm.
func ComputeHash(content []byte, algo Algo) (string, error) {
	switch algo {
	case AlgoSHA1:
		return HashSHA1(content), nil
	case AlgoSHA3:
		return HashSHA3(content), nil
	default:
		return "", errs.New(errs.CategoryUsage, "cannot compute hash for unknown algorithm")
	}
}

// VerifyHash reports whether content hashes to uuid under the algorithm
// implied by uuid's length (hname_verify_hash). An unrecognized uuid shape
// is always a verification failure.
func VerifyHash(content []byte, uuid string) bool {
	algo := Validate(uuid)
	if algo == AlgoError {
		return false
	}
	computed, err := ComputeHash(content, algo)
	if err != nil {
		return false
	}
	return strings.EqualFold(computed, uuid)
}

// Mode identifies one of the five hash-naming policy modes governing how
// new artifacts are named and whether legacy SHA1 names are accepted.
type Mode string

const (
	// ModeSHA1 names all new artifacts SHA1; legacy names are allowed.
	ModeSHA1 Mode = "sha1"
	// ModeAuto names new artifacts SHA1 until the first SHA3 artifact is
	// observed, then permanently switches to sha3.
	ModeAuto Mode = "auto"
	// ModeSHA3 names all new artifacts SHA3; legacy SHA1 names are allowed and reused.
	ModeSHA3 Mode = "sha3"
	// ModeSHA3Only names all new artifacts SHA3; legacy SHA1 names remain
	// readable but are never newly created.
	ModeSHA3Only Mode = "sha3-only"
	// ModeShunSHA1 names all new artifacts SHA3; SHA1 artifacts are refused
	// on sync, except during an initial clone.
	ModeShunSHA1 Mode = "shun-sha1"
)

// ParseMode validates a raw mode string, returning an error for anything
// not in the five recognized modes.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeSHA1, ModeAuto, ModeSHA3, ModeSHA3Only, ModeShunSHA1:
		return Mode(raw), nil
	default:
		return "", errs.Newf(errs.CategoryUsage, "unrecognized hash-policy mode %q", raw)
	}
}

// Policy governs which algorithm new artifacts are named with, and whether
// legacy SHA1 artifacts remain acceptable on sync. It is stored as the
// repository config table's hash-policy key and mutated in place as
// ModeAuto promotes.
type Policy struct {
	mode Mode
}

// NewPolicy constructs a Policy in the given mode.
func NewPolicy(mode Mode) *Policy {
	return &Policy{mode: mode}
}

// Mode returns the policy's current mode.
func (p *Policy) Mode() Mode {
	return p.mode
}

// SetMode forces the policy to mode directly, bypassing ObserveArtifact's
// one-way auto-promotion rule. Used when a repository is reopened and its
// config table already recorded a mode a prior promotion rewrote.
func (p *Policy) SetMode(mode Mode) {
	p.mode = mode
}

// NewArtifactAlgo returns the algorithm that should be used to name a
// newly created artifact under the current mode.
func (p *Policy) NewArtifactAlgo() Algo {
	switch p.mode {
	case ModeSHA1:
		return AlgoSHA1
	default:
		return AlgoSHA3
	}
}

// ObserveArtifact is called for every artifact the repository learns
// about (ingested or synced). Under ModeAuto, observing the first SHA3
// artifact promotes the policy to ModeSHA3 permanently. Returns true if
// the mode changed as a result, so the caller can persist the new value
// to the config table.
func (p *Policy) ObserveArtifact(uuid string) bool {
	if p.mode != ModeAuto {
		return false
	}
	if Validate(uuid) == AlgoSHA3 {
		p.mode = ModeSHA3
		return true
	}
	return false
}

// AcceptOnSync reports whether an artifact named uuid may be accepted
// during a non-clone sync round under the current policy.
func (p *Policy) AcceptOnSync(uuid string, isClone bool) bool {
	algo := Validate(uuid)
	if algo == AlgoError {
		return false
	}
	if algo == AlgoSHA1 && p.mode == ModeShunSHA1 && !isClone {
		return false
	}
	return true
}

// AcceptForNaming reports whether uuid is an acceptable name for newly
// stored content, independent of how it was computed (used when
// verifying an inbound artifact's claimed hash against policy).
func (p *Policy) AcceptForNaming(algo Algo) bool {
	if algo == AlgoError {
		return false
	}
	if algo == AlgoSHA1 && p.mode == ModeSHA3Only {
		return false
	}
	return true
}
