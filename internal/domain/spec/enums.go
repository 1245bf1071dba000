package spec

// AttachmentFilter restricts results by attachment presence.
type AttachmentFilter string

// Attachment filter constants.
const (
	AttachmentAll     AttachmentFilter = "all"
	AttachmentWith    AttachmentFilter = "with_attachments"
	AttachmentWithout AttachmentFilter = "without_attachments"
)

// IsValid checks if the filter is one of the supported values.
func (a AttachmentFilter) IsValid() bool {
	return a == AttachmentAll || a == AttachmentWith || a == AttachmentWithout
}

// Scope selects which message parts the archive searches.
type Scope string

// Search scope constants.
const (
	ScopeSubjectAndBody Scope = "subject_and_body"
	ScopeSubjectOnly    Scope = "subject_only"
)

// IsValid checks if the scope is one of the supported values.
func (s Scope) IsValid() bool {
	return s == ScopeSubjectAndBody || s == ScopeSubjectOnly
}

// ChannelAll matches every registered listserv channel.
const ChannelAll = "all"
