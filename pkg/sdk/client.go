package lexsieve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the LexSieve SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the LexSieve API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("lexsieve: base URL required")
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    hc,
		obs:     obs,
	}, nil
}

type createSearchRequest struct {
	Question string `json:"question"`
}

type answerSearchRequest struct {
	Answer string `json:"answer"`
}

// listEnvelope mirrors the API's list payloads.
type listEnvelope[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// CreateSearch starts a search run for a natural-language question.
// A vague question is not an error: the run comes back pending with a
// follow-up question set; see Run.NeedsClarification.
func (c *Client) CreateSearch(ctx context.Context, question string) (run Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("create_search", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/searches", createSearchRequest{Question: question}, &run)
	return run, err
}

// AnswerSearch supplies the answer to a run's follow-up question and
// resumes the pipeline.
func (c *Client) AnswerSearch(ctx context.Context, id, answer string) (run Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer_search", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/searches/"+url.PathEscape(id)+"/answer",
		answerSearchRequest{Answer: answer}, &run)
	return run, err
}

// GetSearch returns the current state of a run.
func (c *Client) GetSearch(ctx context.Context, id string) (run Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_search", start, err) }()

	err = c.do(ctx, http.MethodGet, "/v1/searches/"+url.PathEscape(id), nil, &run)
	return run, err
}

// ListSearches returns recent runs, newest first. limit <= 0 uses the
// server default.
func (c *Client) ListSearches(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list_searches", start, err) }()

	path := "/v1/searches"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envelope listEnvelope[Run]
	if err = c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// Results returns a completed run's ranked results.
func (c *Client) Results(ctx context.Context, id string) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_results", start, err) }()

	var envelope listEnvelope[SearchResult]
	if err = c.do(ctx, http.MethodGet, "/v1/searches/"+url.PathEscape(id)+"/results", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// CancelSearch stops an in-flight run and returns its final state.
func (c *Client) CancelSearch(ctx context.Context, id string) (run Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("cancel_search", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/searches/"+url.PathEscape(id)+"/cancel", nil, &run)
	return run, err
}

// GetMessage returns one stored archive message by archive id.
func (c *Client) GetMessage(ctx context.Context, archiveID string) (msg Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_message", start, err) }()

	err = c.do(ctx, http.MethodGet, "/v1/messages/"+url.PathEscape(archiveID), nil, &msg)
	return msg, err
}

// Channels returns the registered listserv channels.
func (c *Client) Channels(ctx context.Context) (channels []Channel, err error) {
	start := time.Now()
	defer func() { c.obs.observe("channels", start, err) }()

	var envelope listEnvelope[Channel]
	if err = c.do(ctx, http.MethodGet, "/v1/channels", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// Stats returns pipeline counters and today's generation usage.
func (c *Client) Stats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	err = c.do(ctx, http.MethodGet, "/v1/stats", nil, &stats)
	return stats, err
}

// Health reports the server's dependency health. A degraded server
// responds 503 yet still returns the report, so that is not an error.
func (c *Client) Health(ctx context.Context) (h Health, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("lexsieve: build request: %w", err)
	}
	c.setHeaders(req, false)

	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("lexsieve: GET /health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return Health{}, decodeAPIError(resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("lexsieve: decode response: %w", err)
	}
	return h, nil
}

// do performs one API request: encode body, send, map failures, decode out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("lexsieve: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("lexsieve: build request: %w", err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lexsieve: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("lexsieve: decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// decodeAPIError turns a non-2xx response into an *APIError, falling
// back to the HTTP status text when the body is not the API error shape.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Code != "" {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
			return apiErr
		}
	}

	apiErr.Code = "unknown"
	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}
