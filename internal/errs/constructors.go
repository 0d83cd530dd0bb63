package errs

// Convenience constructors for common fossilgo error patterns.

// ConfigNotFound reports a missing repository configuration file.
func ConfigNotFound(path string) *FossilError {
	return New(CategoryUsage, "configuration file not found").WithField("path", path)
}

// BadArtifactUUID reports an artifact UUID that fails the 40/64-hex-digit shape check.
func BadArtifactUUID(uuid string) *FossilError {
	return New(CategoryUsage, "malformed artifact UUID").WithField("uuid", uuid)
}

// BlobHashMismatch reports a blob whose recomputed hash disagrees with its UUID.
func BlobHashMismatch(rid int64, uuid, recomputed string) *FossilError {
	return New(CategoryCorruptBlob, "blob content does not match its UUID").
		WithField("rid", rid).WithField("uuid", uuid).WithField("recomputed", recomputed)
}

// CorruptDelta reports a delta stream that fails to parse, apply, or checksum.
func CorruptDelta(reason string) *FossilError {
	return New(CategoryCorruptDelta, reason)
}

// CorruptBlob reports a blob whose stored bytes fail to decompress or hash-verify.
func CorruptBlob(reason string) *FossilError {
	return New(CategoryCorruptBlob, reason)
}

// DeltaChainBroken reports a delta whose source blob cannot be resolved.
func DeltaChainBroken(rid, srcid int64, cause error) *FossilError {
	return Wrap(cause, CategoryCorruptDelta, "delta source could not be resolved").
		WithField("rid", rid).WithField("srcid", srcid)
}

// DeltaDepthExceeded reports a delta chain longer than the configured recursion bound.
func DeltaDepthExceeded(rid int64, depth, limit int) *FossilError {
	return New(CategoryCorruptDelta, "delta chain exceeds recursion depth limit").
		WithField("rid", rid).WithField("depth", depth).WithField("limit", limit)
}

// ManifestParseError reports a structurally invalid manifest at the given line.
func ManifestParseError(line int, reason string) *FossilError {
	return New(CategoryManifestParse, reason).WithField("line", line)
}

// PhantomContentUnavailable reports an operation that needed blob content that
// is only present as a phantom (size-only) record.
func PhantomContentUnavailable(uuid string) *FossilError {
	return New(CategoryPhantom, "blob content unavailable, only phantom record present").
		WithField("uuid", uuid)
}

// VerifyRejected reports the pre-commit verifier refusing a pending change.
func VerifyRejected(reason string, cause error) *FossilError {
	return Wrap(cause, CategoryVerifyFailed, reason)
}

// LoginFailed reports a sync login/nonce authentication failure.
func LoginFailed(user string, cause error) *FossilError {
	return Wrap(cause, CategoryAuth, "login authentication failed").WithField("user", user)
}

// ProtocolViolation reports a sync card received out of its expected state.
func ProtocolViolation(card, state string) *FossilError {
	return New(CategoryProtocol, "card received out of protocol order").
		WithField("card", card).WithField("state", state)
}

// CapabilityDenied reports a capability check failure (e.g. write requires moderation).
func CapabilityDenied(capability string) *FossilError {
	return New(CategoryPermission, "capability required").WithField("capability", capability)
}

// RepoLocked reports a transient SQLITE_BUSY-style condition.
func RepoLocked(operation string, cause error) *FossilError {
	return WrapRetryable(cause, CategoryBusy, "database is locked").WithField("operation", operation)
}

// InternalFailure wraps an unexpected internal error.
func InternalFailure(message string, cause error) *FossilError {
	return Wrap(cause, CategoryInternal, message)
}
