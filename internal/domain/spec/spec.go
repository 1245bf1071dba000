package spec

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the wire format for specification dates.
const DateFormat = "2006-01-02"

// Params carries the raw, untyped specification fields as the translator
// emits them. Keyword sets are comma-separated; empty strings mean absent.
type Params struct {
	Keyword         string
	KeywordsAll     string
	KeywordsAny     string
	KeywordsExclude string
	Phrase          string
	Channel         string
	AuthorFirst     string
	AuthorLast      string
	PostedBy        string
	Attachments     string
	DateFrom        string
	DateTo          string
	Scope           string
}

// Spec is a validated search specification: a set of independently optional
// retrieval constraints derived from a resolved question. Every field is
// either absent or a well-formed value from its declared domain.
type Spec struct {
	keyword         string
	keywordsAll     []string
	keywordsAny     []string
	keywordsExclude []string
	phrase          string
	channel         string
	authorFirst     string
	authorLast      string
	postedBy        string
	attachments     AttachmentFilter
	dateFrom        time.Time
	dateTo          time.Time
	scope           Scope
}

// New validates and normalizes raw parameters into a Spec.
// Defaults: channel=all, attachments=all, scope=subject_and_body.
// channels is the set of registered listserv channel ids; a non-"all" channel
// must be one of them. A specification with no filters at all is rejected.
func New(p Params, channels []string) (Spec, error) {
	s := Spec{
		keyword:         strings.TrimSpace(p.Keyword),
		keywordsAll:     splitTerms(p.KeywordsAll),
		keywordsAny:     splitTerms(p.KeywordsAny),
		keywordsExclude: splitTerms(p.KeywordsExclude),
		phrase:          strings.TrimSpace(p.Phrase),
		channel:         strings.TrimSpace(p.Channel),
		authorFirst:     strings.TrimSpace(p.AuthorFirst),
		authorLast:      strings.TrimSpace(p.AuthorLast),
		postedBy:        strings.TrimSpace(p.PostedBy),
	}

	if s.channel == "" {
		s.channel = ChannelAll
	}
	if s.channel != ChannelAll && !containsString(channels, s.channel) {
		return Spec{}, fmt.Errorf("unknown channel: %q", s.channel)
	}

	s.attachments = AttachmentFilter(strings.TrimSpace(p.Attachments))
	if s.attachments == "" {
		s.attachments = AttachmentAll
	}
	if !s.attachments.IsValid() {
		return Spec{}, fmt.Errorf("invalid attachment filter: %q", s.attachments)
	}

	s.scope = Scope(strings.TrimSpace(p.Scope))
	if s.scope == "" {
		s.scope = ScopeSubjectAndBody
	}
	if !s.scope.IsValid() {
		return Spec{}, fmt.Errorf("invalid search scope: %q", s.scope)
	}

	var err error
	if s.dateFrom, err = parseDate(p.DateFrom); err != nil {
		return Spec{}, fmt.Errorf("date_from: %w", err)
	}
	if s.dateTo, err = parseDate(p.DateTo); err != nil {
		return Spec{}, fmt.Errorf("date_to: %w", err)
	}
	if !s.dateFrom.IsZero() && !s.dateTo.IsZero() && s.dateTo.Before(s.dateFrom) {
		return Spec{}, fmt.Errorf("date_to %s precedes date_from %s", p.DateTo, p.DateFrom)
	}

	if s.IsEmpty() {
		return Spec{}, fmt.Errorf("specification has no filters")
	}
	return s, nil
}

// Reconstruct creates a Spec without validation (storage hydration).
func Reconstruct(
	keyword string, all, any, exclude []string, phrase, channel string,
	authorFirst, authorLast, postedBy string, attachments AttachmentFilter,
	dateFrom, dateTo time.Time, scope Scope,
) Spec {
	return Spec{
		keyword: keyword, keywordsAll: all, keywordsAny: any, keywordsExclude: exclude,
		phrase: phrase, channel: channel,
		authorFirst: authorFirst, authorLast: authorLast, postedBy: postedBy,
		attachments: attachments, dateFrom: dateFrom, dateTo: dateTo, scope: scope,
	}
}

// Keyword returns the free-text keyword filter.
func (s *Spec) Keyword() string { return s.keyword }

// KeywordsAll returns the conjunctive keyword set.
func (s *Spec) KeywordsAll() []string { return s.keywordsAll }

// KeywordsAny returns the disjunctive keyword set.
func (s *Spec) KeywordsAny() []string { return s.keywordsAny }

// KeywordsExclude returns the exclusion keyword set.
func (s *Spec) KeywordsExclude() []string { return s.keywordsExclude }

// Phrase returns the exact phrase filter.
func (s *Spec) Phrase() string { return s.phrase }

// Channel returns the listserv channel id, or "all".
func (s *Spec) Channel() string { return s.channel }

// AuthorFirst returns the sender first-name filter.
func (s *Spec) AuthorFirst() string { return s.authorFirst }

// AuthorLast returns the sender last-name filter.
func (s *Spec) AuthorLast() string { return s.authorLast }

// PostedBy returns the sender display-name filter.
func (s *Spec) PostedBy() string { return s.postedBy }

// Attachments returns the attachment-presence filter.
func (s *Spec) Attachments() AttachmentFilter { return s.attachments }

// DateFrom returns the inclusive lower date bound (zero when open).
func (s *Spec) DateFrom() time.Time { return s.dateFrom }

// DateTo returns the inclusive upper date bound (zero when open).
func (s *Spec) DateTo() time.Time { return s.dateTo }

// Scope returns the search scope.
func (s *Spec) Scope() Scope { return s.scope }

// HasSenderIdentity reports whether any sender filter is set.
func (s *Spec) HasSenderIdentity() bool {
	return s.postedBy != "" || s.authorFirst != "" || s.authorLast != ""
}

// HasContentFilters reports whether any keyword or phrase filter is set.
func (s *Spec) HasContentFilters() bool {
	return s.keyword != "" || s.phrase != "" ||
		len(s.keywordsAll) > 0 || len(s.keywordsAny) > 0
}

// IsEmpty reports whether no constraining filter is set. Channel, scope,
// attachment and exclusion values alone do not make a specification usable.
func (s *Spec) IsEmpty() bool {
	return !s.HasSenderIdentity() && !s.HasContentFilters() &&
		s.dateFrom.IsZero() && s.dateTo.IsZero()
}

// SenderName returns the best display form of the sender filter.
func (s *Spec) SenderName() string {
	if s.postedBy != "" {
		return s.postedBy
	}
	name := strings.TrimSpace(s.authorFirst + " " + s.authorLast)
	return name
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want %s: %w", DateFormat, err)
	}
	return t, nil
}

// splitTerms splits a comma-separated list, trimming blanks and dropping empties.
func splitTerms(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
