package manifest

// ResolveDelta computes the effective card stream of a delta manifest
// (one with a B card) against its already-resolved baseline. It returns
// delta unchanged if delta is not itself a delta manifest.
//
// Merge policy (lexical card merge, empty-value-cancels): for each
// single-valued card, the delta manifest's value wins if present; an
// explicitly-present-but-empty value cancels the baseline's card
// entirely. For each repeatable card, the delta manifest's entire set of
// lines for that card letter replaces the baseline's set if the delta
// manifest supplies at least one line of that letter; otherwise the
// baseline's lines are inherited unchanged. A baseline that is itself a
// delta manifest is rejected with a manifest-parse error; ResolveDelta
// does not recurse.
func ResolveDelta(delta, base *Manifest) (*Manifest, error) {
	if !delta.IsDelta {
		return delta, nil
	}
	if base.IsDelta {
		return nil, errManifestf("delta manifest baseline must not itself be a delta manifest")
	}

	merged := *base
	merged.IsDelta = false
	merged.Baseline = ""

	if delta.HasAttachment {
		merged.HasAttachment = len(delta.Attachment) > 0
		merged.Attachment = delta.Attachment
	}
	if delta.HasComment {
		merged.HasComment = delta.Comment != ""
		merged.Comment = delta.Comment
	}
	if delta.HasDateTime {
		merged.HasDateTime = delta.DateTime != ""
		merged.DateTime = delta.DateTime
	}
	if delta.HasEvent {
		merged.HasEvent = delta.EventUUID != ""
		merged.EventTimestamp = delta.EventTimestamp
		merged.EventUUID = delta.EventUUID
	}
	if len(delta.Files) > 0 {
		merged.Files = delta.Files
	}
	if len(delta.TicketChanges) > 0 {
		merged.TicketChanges = delta.TicketChanges
	}
	if delta.HasTicketUUID {
		merged.HasTicketUUID = delta.TicketUUID != ""
		merged.TicketUUID = delta.TicketUUID
	}
	if delta.HasWikiTitle {
		merged.HasWikiTitle = delta.WikiTitle != ""
		merged.WikiTitle = delta.WikiTitle
	}
	if len(delta.Members) > 0 {
		merged.Members = delta.Members
	}
	if delta.HasMimetype {
		merged.HasMimetype = delta.Mimetype != ""
		merged.Mimetype = delta.Mimetype
	}
	if len(delta.Parents) > 0 {
		merged.Parents = delta.Parents
	}
	if len(delta.Cherrypicks) > 0 {
		merged.Cherrypicks = delta.Cherrypicks
	}
	if delta.HasFileMD5 {
		merged.HasFileMD5 = delta.FileMD5 != ""
		merged.FileMD5 = delta.FileMD5
	}
	if len(delta.Tags) > 0 {
		merged.Tags = delta.Tags
	}
	if delta.HasUser {
		merged.HasUser = delta.User != ""
		merged.User = delta.User
	}
	if delta.HasWikiBody {
		merged.HasWikiBody = len(delta.WikiBody) > 0
		merged.WikiBody = delta.WikiBody
	}
	merged.HasTrailer = delta.HasTrailer
	merged.Trailer = delta.Trailer

	return &merged, nil
}
