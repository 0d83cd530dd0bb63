package sync

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// NewNonce generates a random client nonce for a login card, rendered
// as the hex SHA1 of random bytes the way §4.5 describes ("NONCE =
// hash of all payload that follows the login card" — a client that
// has not yet built the rest of the payload uses a random seed in its
// place, which is the behavior this helper provides for a fresh
// session; a resumed session instead hashes its pending payload via
// NonceForPayload).
func NewNonce() (string, error) {
	seed := make([]byte, 20)
	if _, err := rand.Read(seed); err != nil {
		return "", errs.Wrap(err, errs.CategoryInternal, "generate sync nonce")
	}
	sum := sha1.Sum(seed)
	return hex.EncodeToString(sum[:]), nil
}

// NonceForPayload computes NONCE as the SHA1 of the card-stream bytes
// that follow the login card, per §4.5.
func NonceForPayload(payload []byte) string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// LoginSignature computes SIGNATURE = SHA1(NONCE ++ SHA1(password)),
// the legacy-compatible scheme §4.5 specifies.
func LoginSignature(nonce, password string) string {
	pwHash := sha1.Sum([]byte(password))
	payload := nonce + hex.EncodeToString(pwHash[:])
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyLogin checks a login card's signature against the password on
// file, the check the server side of a session runs before accepting
// a login card.
func VerifyLogin(c Card, password string) error {
	if c.Kind != KindLogin {
		return errs.ProtocolViolation(string(c.Kind), "expected login")
	}
	want := LoginSignature(c.Nonce, password)
	if want != c.Signature {
		return errs.LoginFailed(c.User, fmt.Errorf("signature mismatch"))
	}
	return nil
}
