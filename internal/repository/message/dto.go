package message

import (
	"fmt"
	"strconv"
	"time"

	dommsg "github.com/lexsieve/lexsieve/internal/domain/message"
)

// messageToHash converts a domain Message to a map for HSET.
func messageToHash(m dommsg.Message) map[string]string {
	postedAt := "0"
	if !m.PostedAt().IsZero() {
		postedAt = strconv.FormatInt(m.PostedAt().UnixMilli(), 10)
	}
	attachment := "0"
	if m.HasAttachment() {
		attachment = "1"
	}
	return map[string]string{
		"archive_id":     m.ArchiveID(),
		"sender":         m.Sender(),
		"subject":        m.Subject(),
		"body":           m.Body(),
		"channel":        m.Channel(),
		"posted_at":      postedAt,
		"has_attachment": attachment,
		"archive_url":    m.ArchiveURL(),
	}
}

// messageFromHash hydrates a domain Message from an HGETALL result map.
func messageFromHash(m map[string]string) (dommsg.Message, error) {
	var postedAt time.Time
	if v := m["posted_at"]; v != "" && v != "0" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return dommsg.Message{}, fmt.Errorf("invalid posted_at: %w", err)
		}
		postedAt = time.UnixMilli(ms).UTC()
	}
	return dommsg.Reconstruct(
		m["archive_id"],
		m["sender"],
		m["subject"],
		m["body"],
		m["channel"],
		postedAt,
		m["has_attachment"] == "1",
		m["archive_url"],
	), nil
}
