// Package logfields provides canonical log field names and helpers for structured logging in fossilgo.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
// These are used for structured logging with slog.
const (
	KeyRid        = "rid"
	KeyUUID       = "uuid"
	KeySrcID      = "srcid"
	KeySize       = "size"
	KeyRepo       = "repository"
	KeyError      = "error"
	KeyPath       = "path"
	KeyCard       = "card"
	KeyLine       = "line"
	KeyArtifact   = "artifact_type"
	KeySession    = "sync_session"
	KeyRound      = "round"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyUser       = "user"
	KeyRemoteAddr = "remote_addr"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyHashAlgo   = "hash_algo"
	KeyBranch     = "branch"
	KeyTag        = "tag"
	KeyBytes      = "bytes"
	KeyName       = "name"
	KeyURL        = "url"
)

// Rid returns a slog.Attr for a blob/commit row id.
func Rid(rid int64) slog.Attr { return slog.Int64(KeyRid, rid) }

// UUID returns a slog.Attr for an artifact's hash name.
func UUID(u string) slog.Attr { return slog.String(KeyUUID, u) }

// SrcID returns a slog.Attr for a delta's source row id.
func SrcID(rid int64) slog.Attr { return slog.Int64(KeySrcID, rid) }

// Size returns a slog.Attr for a byte size (use -1 for phantom).
func Size(n int64) slog.Attr { return slog.Int64(KeySize, n) }

// Repository returns a slog.Attr for a repository path.
func Repository(r string) slog.Attr { return slog.String(KeyRepo, r) }

// Path returns a slog.Attr for a file path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Card returns a slog.Attr for a manifest card letter.
func Card(c string) slog.Attr { return slog.String(KeyCard, c) }

// Line returns a slog.Attr for a manifest line number.
func Line(n int) slog.Attr { return slog.Int(KeyLine, n) }

// ArtifactType returns a slog.Attr for a classified artifact type.
func ArtifactType(t string) slog.Attr { return slog.String(KeyArtifact, t) }

// SyncSession returns a slog.Attr for a sync session identifier.
func SyncSession(id string) slog.Attr { return slog.String(KeySession, id) }

// Round returns a slog.Attr for a sync negotiation round number.
func Round(n int) slog.Attr { return slog.Int(KeyRound, n) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DurationMS returns a slog.Attr for a duration in milliseconds.
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// User returns a slog.Attr for a user name.
func User(u string) slog.Attr { return slog.String(KeyUser, u) }

// RemoteAddr returns a slog.Attr for a remote address.
func RemoteAddr(a string) slog.Attr { return slog.String(KeyRemoteAddr, a) }

// Method returns a slog.Attr for an HTTP method.
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

// Status returns a slog.Attr for an HTTP status code.
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// HashAlgo returns a slog.Attr for the active hash algorithm name.
func HashAlgo(a string) slog.Attr { return slog.String(KeyHashAlgo, a) }

// Branch returns a slog.Attr for a branch tag value.
func Branch(b string) slog.Attr { return slog.String(KeyBranch, b) }

// Tag returns a slog.Attr for a tag name.
func Tag(t string) slog.Attr { return slog.String(KeyTag, t) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// Name returns a slog.Attr for a generic name field.
func Name(n string) slog.Attr { return slog.String(KeyName, n) }

// URL returns a slog.Attr for a URL field.
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }

// Error returns a slog.Attr for an error, or an empty string if nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
