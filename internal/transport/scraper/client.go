// Package scraper is the HTTP adapter for the archive retrieval service.
// It posts a search specification as the archive's form fields and decodes
// the crawled messages; crawling mechanics stay on the service side.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
)

// formDateFormat is the archive form's date rendering.
const formDateFormat = "01/02/2006"

// Client talks to the scraper service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the scraper service settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a scraper service client.
func NewClient(cfg *Config) *Client {
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  cfg.Logger,
	}
}

// searchResponse is the scraper service's result envelope.
type searchResponse struct {
	Results []record `json:"results"`
}

// record is one crawled message as the scraper service reports it.
type record struct {
	ArchiveID     string `json:"archive_id"`
	Sender        string `json:"sender"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Listserv      string `json:"listserv"`
	PostedAt      string `json:"posted_at"`
	HasAttachment bool   `json:"has_attachment"`
	URL           string `json:"url"`
}

// Fetch posts the specification to the scraper service and returns the
// crawled messages in the archive's reported order. Any transport, status,
// or payload failure wraps domain.ErrRetrievalFailed.
func (c *Client) Fetch(ctx context.Context, s spec.Spec) ([]message.Message, error) {
	form := formValues(s)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/search", strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post search form: %w: %w", domain.ErrRetrievalFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scraper returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrRetrievalFailed)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w: %w", domain.ErrRetrievalFailed, err)
	}

	msgs := make([]message.Message, 0, len(payload.Results))
	for i, rec := range payload.Results {
		msg, err := rec.toMessage()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w: %w", i, domain.ErrRetrievalFailed, err)
		}
		msgs = append(msgs, msg)
	}

	c.logger.Debug("archive search",
		zap.Int("results", len(msgs)),
		zap.String("channel", s.Channel()))
	return msgs, nil
}

// Ping checks scraper service reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scraper unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scraper health returned %d", resp.StatusCode)
	}
	return nil
}

func (r record) toMessage() (message.Message, error) {
	var posted time.Time
	if r.PostedAt != "" {
		t, err := time.Parse(time.RFC3339, r.PostedAt)
		if err != nil {
			return message.Message{}, fmt.Errorf("posted_at %q: %v", r.PostedAt, err)
		}
		posted = t
	}
	return message.New(
		r.ArchiveID, r.Sender, r.Subject, r.Body, r.Listserv,
		posted, r.HasAttachment, r.URL,
	)
}

// formValues renders the specification as the archive's search form fields.
// Only constraining values are sent; an absent field means "any".
func formValues(s spec.Spec) url.Values {
	form := url.Values{}
	set := func(key, value string) {
		if value != "" {
			form.Set(key, value)
		}
	}

	set("s_keyword", s.Keyword())
	set("s_key_all", strings.Join(s.KeywordsAll(), " "))
	set("s_key_one", strings.Join(s.KeywordsAny(), " "))
	set("s_key_x", strings.Join(s.KeywordsExclude(), " "))
	set("s_key_phrase", s.Phrase())
	set("s_fname", s.AuthorFirst())
	set("s_lname", s.AuthorLast())
	set("s_postedby", s.PostedBy())

	if s.Channel() != spec.ChannelAll {
		form.Set("s_list", s.Channel())
	}
	switch s.Attachments() {
	case spec.AttachmentWith:
		form.Set("s_attachment", "1")
	case spec.AttachmentWithout:
		form.Set("s_attachment", "0")
	}
	if !s.DateFrom().IsZero() {
		form.Set("s_postdatefrom", s.DateFrom().Format(formDateFormat))
	}
	if !s.DateTo().IsZero() {
		form.Set("s_postdateto", s.DateTo().Format(formDateFormat))
	}
	if s.Scope() == spec.ScopeSubjectOnly {
		form.Set("s_search_in", "subject_only")
	}
	return form
}
