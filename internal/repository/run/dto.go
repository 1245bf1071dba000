package run

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain/assessment"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
)

// runToHash converts a domain Run to a map for HSET.
func runToHash(r domrun.Run) map[string]string {
	ex := r.Exchange()
	resolved := r.Resolved()

	m := map[string]string{
		"id":              r.ID(),
		"status":          string(r.Status()),
		"question":        ex.Original(),
		"follow_up":       ex.FollowUp(),
		"answer":          ex.AnswerText(),
		"resolved":        resolved.Text(),
		"resolved_folded": boolField(resolved.Folded()),
		"retrieved":       strconv.Itoa(r.Retrieved()),
		"scored":          strconv.Itoa(r.Scored()),
		"relevant":        strconv.Itoa(r.Relevant()),
		"degraded":        strconv.Itoa(r.Degraded()),
		"failure":         r.Failure(),
		"created_at":      millis(r.CreatedAt()),
		"updated_at":      millis(r.UpdatedAt()),
		"completed_at":    millis(r.CompletedAt()),
	}

	if s := r.Specification(); s != nil {
		m["has_spec"] = "1"
		m["spec_keyword"] = s.Keyword()
		m["spec_keywords_all"] = strings.Join(s.KeywordsAll(), ",")
		m["spec_keywords_any"] = strings.Join(s.KeywordsAny(), ",")
		m["spec_keywords_exclude"] = strings.Join(s.KeywordsExclude(), ",")
		m["spec_phrase"] = s.Phrase()
		m["spec_channel"] = s.Channel()
		m["spec_author_first"] = s.AuthorFirst()
		m["spec_author_last"] = s.AuthorLast()
		m["spec_posted_by"] = s.PostedBy()
		m["spec_attachments"] = string(s.Attachments())
		m["spec_date_from"] = dateField(s.DateFrom())
		m["spec_date_to"] = dateField(s.DateTo())
		m["spec_scope"] = string(s.Scope())
	}

	if a := r.Assessment(); a != nil {
		m["assessment_score"] = strconv.Itoa(a.Score())
		m["assessment_summary"] = a.Summary()
		if topics, err := json.Marshal(a.Topics()); err == nil {
			m["assessment_topics"] = string(topics)
		}
	}

	return m
}

// runFromHash hydrates a domain Run from an HGETALL result map.
func runFromHash(m map[string]string) (domrun.Run, error) {
	createdAt, err := fromMillis(m["created_at"])
	if err != nil {
		return domrun.Run{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := fromMillis(m["updated_at"])
	if err != nil {
		return domrun.Run{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	completedAt, err := fromMillis(m["completed_at"])
	if err != nil {
		return domrun.Run{}, fmt.Errorf("invalid completed_at: %w", err)
	}

	ex := question.ReconstructExchange(m["question"], m["follow_up"], m["answer"])
	resolved := question.Reconstruct(m["resolved"], m["resolved_folded"] == "1")

	var searchSpec *spec.Spec
	if m["has_spec"] == "1" {
		dateFrom, derr := parseDate(m["spec_date_from"])
		if derr != nil {
			return domrun.Run{}, fmt.Errorf("invalid spec_date_from: %w", derr)
		}
		dateTo, derr := parseDate(m["spec_date_to"])
		if derr != nil {
			return domrun.Run{}, fmt.Errorf("invalid spec_date_to: %w", derr)
		}
		s := spec.Reconstruct(
			m["spec_keyword"],
			splitField(m["spec_keywords_all"]),
			splitField(m["spec_keywords_any"]),
			splitField(m["spec_keywords_exclude"]),
			m["spec_phrase"],
			m["spec_channel"],
			m["spec_author_first"],
			m["spec_author_last"],
			m["spec_posted_by"],
			spec.AttachmentFilter(m["spec_attachments"]),
			dateFrom,
			dateTo,
			spec.Scope(m["spec_scope"]),
		)
		searchSpec = &s
	}

	var asmt *assessment.Assessment
	if scoreStr, ok := m["assessment_score"]; ok && scoreStr != "" {
		score, serr := strconv.Atoi(scoreStr)
		if serr != nil {
			return domrun.Run{}, fmt.Errorf("invalid assessment_score: %w", serr)
		}
		var topics []string
		if tj := m["assessment_topics"]; tj != "" {
			if uerr := json.Unmarshal([]byte(tj), &topics); uerr != nil {
				return domrun.Run{}, fmt.Errorf("unmarshal assessment_topics: %w", uerr)
			}
		}
		a := assessment.Reconstruct(score, m["assessment_summary"], topics)
		asmt = &a
	}

	return domrun.Reconstruct(
		m["id"], domrun.Status(m["status"]), ex, resolved, searchSpec,
		intField(m["retrieved"]), intField(m["scored"]),
		intField(m["relevant"]), intField(m["degraded"]),
		m["failure"], asmt,
		createdAt, updatedAt, completedAt,
	), nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intField(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func millis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func fromMillis(v string) (time.Time, error) {
	if v == "" || v == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func dateField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(spec.DateFormat)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(spec.DateFormat, v)
}

// splitField reverses the comma-join in runToHash. Terms never contain
// commas; spec normalization splits them on the way in.
func splitField(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
