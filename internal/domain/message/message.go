package message

import (
	"fmt"
	"strings"
	"time"
)

// MaxBodySize is the maximum stored message body size in bytes.
const MaxBodySize = 262144 // 256KB

// Message is an archived listserv message (immutable value object). The
// archive id is the stable identifier the external store dedupes on.
type Message struct {
	archiveID     string
	sender        string
	subject       string
	body          string
	channel       string
	postedAt      time.Time
	hasAttachment bool
	archiveURL    string
}

// New validates and creates a Message.
func New(
	archiveID, sender, subject, body, channel string,
	postedAt time.Time, hasAttachment bool, archiveURL string,
) (Message, error) {
	archiveID = strings.TrimSpace(archiveID)
	if archiveID == "" {
		return Message{}, fmt.Errorf("archive id is required")
	}
	if len(body) > MaxBodySize {
		return Message{}, fmt.Errorf("body too large (max %d bytes)", MaxBodySize)
	}
	return Message{
		archiveID:     archiveID,
		sender:        strings.TrimSpace(sender),
		subject:       strings.TrimSpace(subject),
		body:          body,
		channel:       strings.TrimSpace(channel),
		postedAt:      postedAt,
		hasAttachment: hasAttachment,
		archiveURL:    strings.TrimSpace(archiveURL),
	}, nil
}

// Reconstruct creates a Message without validation (storage hydration).
func Reconstruct(
	archiveID, sender, subject, body, channel string,
	postedAt time.Time, hasAttachment bool, archiveURL string,
) Message {
	return Message{
		archiveID: archiveID, sender: sender, subject: subject, body: body,
		channel: channel, postedAt: postedAt, hasAttachment: hasAttachment,
		archiveURL: archiveURL,
	}
}

// ArchiveID returns the stable archive identifier.
func (m Message) ArchiveID() string { return m.archiveID }

// Sender returns the sender display name.
func (m Message) Sender() string { return m.sender }

// Subject returns the subject line.
func (m Message) Subject() string { return m.subject }

// Body returns the message body text.
func (m Message) Body() string { return m.body }

// Channel returns the listserv channel id.
func (m Message) Channel() string { return m.channel }

// PostedAt returns the posting time (zero when unknown).
func (m Message) PostedAt() time.Time { return m.postedAt }

// HasAttachment reports whether the message carries an attachment.
func (m Message) HasAttachment() bool { return m.hasAttachment }

// ArchiveURL returns the archive link for the message, if known.
func (m Message) ArchiveURL() string { return m.archiveURL }
