// Package manifest implements the card-oriented grammar that encodes
// commits, wiki pages, technotes, tickets, attachments, clusters, and tag
// controls, plus the delta-manifest (B card) merge algorithm and the
// artifact-type classifier that feeds the xref builder.
package manifest

import "github.com/fossilgo/fossilgo/internal/errs"

func errManifestf(format string, args ...any) error {
	return errs.Newf(errs.CategoryManifestParse, format, args...)
}

// FileEntry is one F card: a file's name, content hash, optional
// permission bits, and optional prior name (rename).
type FileEntry struct {
	Name    string
	Hash    string // empty for a deletion
	Perm    string
	OldName string
}

// TagOp is one T card: a tag operation against a target artifact.
type TagOp struct {
	Op     byte // '+' single, '*' propagating, '-' cancel
	Name   string
	Target string // target uuid, or "*" for "this artifact"
	Value  string
}

// TicketChange is one J card: a ticket field set to a new value.
type TicketChange struct {
	Name  string
	Value string
}

// Manifest is the parsed, tagged-variant form of any artifact's card
// stream. Exactly which fields are populated depends on Classify's
// determination of the artifact's type; callers check the Has* flags
// rather than relying on zero values, since "" and 0 are themselves valid
// field values for several cards.
type Manifest struct {
	IsDelta  bool
	Baseline string // B card

	HasAttachment bool
	Attachment    []string // A card fields, order-preserved

	HasComment bool
	Comment    string // C card

	HasDateTime bool
	DateTime    string // D card

	HasEvent       bool
	EventTimestamp string // E card first field
	EventUUID      string // E card second field

	Files []FileEntry // F cards; Parse rejects names not in strict ascending order

	TicketChanges []TicketChange // J cards

	HasTicketUUID bool
	TicketUUID    string // K card

	HasWikiTitle bool
	WikiTitle    string // L card

	Members []string // M cards

	HasMimetype bool
	Mimetype    string // N card

	Parents     []string // P cards; Parents[0] is the primary parent
	Cherrypicks []string // Q cards

	HasFileMD5 bool
	FileMD5    string // R card

	Tags []TagOp // T cards; Parse rejects tagnames not in strict ascending order

	HasUser bool
	User    string // U card

	HasWikiBody bool
	WikiBody    []byte // W card payload

	HasTrailer bool
	Trailer    string // Z card (md5 of preceding bytes)
}

// ArtifactType is the classification Classify assigns to a parsed
// Manifest, driving which xref Build function the caller should invoke.
type ArtifactType string

const (
	ArtifactCommit     ArtifactType = "commit"
	ArtifactWiki       ArtifactType = "wiki"
	ArtifactTechnote   ArtifactType = "technote"
	ArtifactTicket     ArtifactType = "ticket"
	ArtifactAttachment ArtifactType = "attachment"
	ArtifactCluster    ArtifactType = "cluster"
	ArtifactControl    ArtifactType = "control"
	ArtifactUnknown    ArtifactType = "unknown"
)

// Classify infers the artifact type from the card set present in m,
// following spec's classification table in the order it lists: commit,
// wiki, technote, ticket, attachment, cluster, control.
func Classify(m *Manifest) ArtifactType {
	hasBranchTag := false
	for _, t := range m.Tags {
		if t.Name == "branch" {
			hasBranchTag = true
			break
		}
	}

	isCommitShaped := m.HasDateTime && (len(m.Files) > 0 || len(m.Parents) > 0 || hasBranchTag)
	noncommitMarkers := m.HasTicketUUID || m.HasEvent || m.HasWikiTitle || m.HasWikiBody

	switch {
	case isCommitShaped && !noncommitMarkers:
		return ArtifactCommit
	case m.HasWikiTitle && m.HasWikiBody:
		return ArtifactWiki
	case m.HasEvent && m.HasWikiBody:
		return ArtifactTechnote
	case m.HasTicketUUID && len(m.TicketChanges) > 0:
		return ArtifactTicket
	case m.HasAttachment:
		return ArtifactAttachment
	case len(m.Members) > 0 && m.HasTrailer && !m.HasDateTime && !m.HasUser:
		return ArtifactCluster
	case len(m.Tags) > 0 && m.HasDateTime && len(m.Files) == 0 && len(m.Parents) == 0:
		return ArtifactControl
	default:
		return ArtifactUnknown
	}
}
