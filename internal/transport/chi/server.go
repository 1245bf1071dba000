// Package chi is the HTTP transport: routes, bearer auth, and the mapping
// from domain sentinels to response statuses. Handlers stay thin; all
// pipeline behavior lives in the usecase services.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	chimux "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	healthuc "github.com/lexsieve/lexsieve/internal/usecase/health"
	usageuc "github.com/lexsieve/lexsieve/internal/usecase/usage"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest             = "bad_request"
	codeInvalidQuestion        = "invalid_question"
	codeRunNotFound            = "run_not_found"
	codeMessageNotFound        = "message_not_found"
	codeChannelNotFound        = "channel_not_found"
	codeNotFound               = "not_found"
	codeNoPendingClarification = "no_pending_clarification"
	codeRunFinished            = "run_finished"
	codeInvalidTransition      = "invalid_transition"
	codeBudgetExhausted        = "budget_exhausted"
	codeRateLimited            = "rate_limited"
	codeGenerationUnavailable  = "generation_unavailable"
	codeUnauthorized           = "unauthorized"
	codeInternalError          = "internal_error"
)

// Consumer-side service contracts, substitutable in tests.
type searchService interface {
	Create(ctx context.Context, questionText string) (domrun.Run, error)
	Answer(ctx context.Context, id, answerText string) (domrun.Run, error)
	Get(ctx context.Context, id string) (domrun.Run, error)
	List(ctx context.Context, limit int) ([]domrun.Run, error)
	Results(ctx context.Context, id string) ([]domrun.RankedResult, error)
	Message(ctx context.Context, archiveID string) (message.Message, error)
	Cancel(ctx context.Context, id string) error
}

type channelService interface {
	All(ctx context.Context) (map[string]string, error)
}

type statsService interface {
	Stats(ctx context.Context) (usageuc.Stats, error)
}

type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search pipeline over HTTP.
type Server struct {
	searches      searchService
	channels      channelService
	stats         statsService
	health        healthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	searches searchService,
	channels channelService,
	stats statsService,
	health healthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		searches: searches,
		channels: channels,
		stats:    stats,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrRunNotFound, http.StatusNotFound, codeRunNotFound),
		sentinelHandler(domain.ErrMessageNotFound, http.StatusNotFound, codeMessageNotFound),
		sentinelHandler(domain.ErrChannelNotFound, http.StatusNotFound, codeChannelNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidQuestion, http.StatusBadRequest, codeInvalidQuestion),
		sentinelHandler(domain.ErrNoPendingClarification, http.StatusConflict, codeNoPendingClarification),
		sentinelHandler(domain.ErrRunTerminal, http.StatusConflict, codeRunFinished),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition),
		sentinelHandler(domain.ErrBudgetExhausted, http.StatusTooManyRequests, codeBudgetExhausted),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrGenerationUnavailable, http.StatusBadGateway, codeGenerationUnavailable),
		sentinelHandler(domain.ErrGenerationRejected, http.StatusBadGateway, codeGenerationUnavailable),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chimux.Router) {
	r.Route("/v1", func(r chimux.Router) {
		r.Route("/searches", func(r chimux.Router) {
			r.Post("/", s.createSearch)
			r.Get("/", s.listSearches)
			r.Route("/{id}", func(r chimux.Router) {
				r.Get("/", s.getSearch)
				r.Post("/answer", s.answerSearch)
				r.Get("/results", s.getSearchResults)
				r.Post("/cancel", s.cancelSearch)
			})
		})
		r.Get("/messages/{id}", s.getMessage)
		r.Get("/channels", s.getChannels)
		r.Get("/stats", s.getStats)
	})
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", s.metrics)
}

// createSearch handles POST /v1/searches. A vague question is a normal 202
// whose run carries follow_up_question; it is never an error.
func (s *Server) createSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	run, err := s.searches.Create(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// answerSearch handles POST /v1/searches/{id}/answer.
func (s *Server) answerSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	run, err := s.searches.Answer(r.Context(), chimux.URLParam(r, "id"), req.Answer)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// listSearches handles GET /v1/searches.
func (s *Server) listSearches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.searches.List(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]runResponse, len(runs))
	for i, run := range runs {
		items[i] = runToResponse(run)
	}
	writeJSON(w, http.StatusOK, listResponse[runResponse]{Items: items, Total: len(items)})
}

// getSearch handles GET /v1/searches/{id}.
func (s *Server) getSearch(w http.ResponseWriter, r *http.Request) {
	run, err := s.searches.Get(r.Context(), chimux.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// getSearchResults handles GET /v1/searches/{id}/results.
func (s *Server) getSearchResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.searches.Results(r.Context(), chimux.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]resultResponse, len(results))
	for i := range results {
		items[i] = resultToResponse(&results[i])
	}
	writeJSON(w, http.StatusOK, listResponse[resultResponse]{Items: items, Total: len(items)})
}

// cancelSearch handles POST /v1/searches/{id}/cancel.
func (s *Server) cancelSearch(w http.ResponseWriter, r *http.Request) {
	id := chimux.URLParam(r, "id")
	if err := s.searches.Cancel(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	run, err := s.searches.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// getMessage handles GET /v1/messages/{id}.
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.searches.Message(r.Context(), chimux.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageToResponse(msg))
}

// getChannels handles GET /v1/channels.
func (s *Server) getChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.channels.All(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]channelResponse, 0, len(channels))
	for id, name := range channels {
		items = append(items, channelResponse{ID: id, Name: name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writeJSON(w, http.StatusOK, listResponse[channelResponse]{Items: items, Total: len(items)})
}

// getStats handles GET /v1/stats.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToResponse(stats))
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrRunNotFound,
		domain.ErrMessageNotFound,
		domain.ErrChannelNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidQuestion,
		domain.ErrNoPendingClarification,
		domain.ErrRunTerminal,
		domain.ErrInvalidTransition,
		domain.ErrBudgetExhausted,
		domain.ErrRateLimited,
		domain.ErrGenerationUnavailable,
		domain.ErrGenerationRejected,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// listResponse wraps a homogeneous item list.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type runResponse struct {
	ID                  string              `json:"id"`
	Status              string              `json:"status"`
	Question            string              `json:"question"`
	FollowUpQuestion    string              `json:"follow_up_question,omitempty"`
	ClarificationAnswer string              `json:"clarification_answer,omitempty"`
	ResolvedQuestion    string              `json:"resolved_question,omitempty"`
	Specification       *specResponse       `json:"specification,omitempty"`
	Retrieved           int                 `json:"retrieved"`
	Scored              int                 `json:"scored"`
	Relevant            int                 `json:"relevant"`
	Degraded            int                 `json:"degraded,omitempty"`
	Failure             string              `json:"failure,omitempty"`
	Assessment          *assessmentResponse `json:"assessment,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
}

// specResponse mirrors the translator's wire vocabulary.
type specResponse struct {
	Keyword         string   `json:"keyword,omitempty"`
	KeywordsAll     []string `json:"keywords_all,omitempty"`
	KeywordsAny     []string `json:"keywords_any,omitempty"`
	KeywordsExclude []string `json:"keywords_exclude,omitempty"`
	Phrase          string   `json:"keywords_phrase,omitempty"`
	Channel         string   `json:"listserv"`
	AuthorFirst     string   `json:"author_first_name,omitempty"`
	AuthorLast      string   `json:"author_last_name,omitempty"`
	PostedBy        string   `json:"posted_by,omitempty"`
	Attachments     string   `json:"attachment_filter"`
	DateFrom        string   `json:"date_from,omitempty"`
	DateTo          string   `json:"date_to,omitempty"`
	Scope           string   `json:"search_in"`
}

type assessmentResponse struct {
	Score   int      `json:"score"`
	Summary string   `json:"summary,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

type messageResponse struct {
	ArchiveID     string     `json:"archive_id"`
	Sender        string     `json:"sender,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body,omitempty"`
	Listserv      string     `json:"listserv,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	HasAttachment bool       `json:"has_attachment"`
	URL           string     `json:"url,omitempty"`
}

type verdictResponse struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Degraded   bool    `json:"degraded,omitempty"`
}

type resultResponse struct {
	Position int             `json:"position"`
	Message  messageResponse `json:"message"`
	Verdict  verdictResponse `json:"verdict"`
}

type channelResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type statsResponse struct {
	Runs     map[string]int `json:"runs"`
	Messages int            `json:"messages"`
	Analyses int            `json:"analyses"`
	Usage    usageResponse  `json:"usage"`
}

type usageResponse struct {
	Date             string         `json:"date"`
	Calls            int            `json:"calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	StageCalls       map[string]int `json:"stage_calls,omitempty"`
	Budget           budgetResponse `json:"budget"`
}

type budgetResponse struct {
	CallsLimit      int        `json:"calls_limit"`
	CallsRemaining  int        `json:"calls_remaining"`
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	Exhausted       bool       `json:"exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

func runToResponse(r domrun.Run) runResponse {
	ex := r.Exchange()
	resolved := r.Resolved()

	resp := runResponse{
		ID:                  r.ID(),
		Status:              string(r.Status()),
		Question:            ex.Original(),
		FollowUpQuestion:    ex.FollowUp(),
		ClarificationAnswer: ex.AnswerText(),
		ResolvedQuestion:    resolved.Text(),
		Retrieved:           r.Retrieved(),
		Scored:              r.Scored(),
		Relevant:            r.Relevant(),
		Degraded:            r.Degraded(),
		Failure:             r.Failure(),
		CreatedAt:           r.CreatedAt().UTC(),
		UpdatedAt:           r.UpdatedAt().UTC(),
	}
	if sp := r.Specification(); sp != nil {
		specResp := specToResponse(sp)
		resp.Specification = &specResp
	}
	if a := r.Assessment(); a != nil {
		resp.Assessment = &assessmentResponse{
			Score:   a.Score(),
			Summary: a.Summary(),
			Topics:  a.Topics(),
		}
	}
	if !r.CompletedAt().IsZero() {
		t := r.CompletedAt().UTC()
		resp.CompletedAt = &t
	}
	return resp
}

func specToResponse(sp *spec.Spec) specResponse {
	resp := specResponse{
		Keyword:         sp.Keyword(),
		KeywordsAll:     sp.KeywordsAll(),
		KeywordsAny:     sp.KeywordsAny(),
		KeywordsExclude: sp.KeywordsExclude(),
		Phrase:          sp.Phrase(),
		Channel:         sp.Channel(),
		AuthorFirst:     sp.AuthorFirst(),
		AuthorLast:      sp.AuthorLast(),
		PostedBy:        sp.PostedBy(),
		Attachments:     string(sp.Attachments()),
		Scope:           string(sp.Scope()),
	}
	if !sp.DateFrom().IsZero() {
		resp.DateFrom = sp.DateFrom().Format(spec.DateFormat)
	}
	if !sp.DateTo().IsZero() {
		resp.DateTo = sp.DateTo().Format(spec.DateFormat)
	}
	return resp
}

func messageToResponse(m message.Message) messageResponse {
	resp := messageResponse{
		ArchiveID:     m.ArchiveID(),
		Sender:        m.Sender(),
		Subject:       m.Subject(),
		Body:          m.Body(),
		Listserv:      m.Channel(),
		HasAttachment: m.HasAttachment(),
		URL:           m.ArchiveURL(),
	}
	if !m.PostedAt().IsZero() {
		t := m.PostedAt().UTC()
		resp.PostedAt = &t
	}
	return resp
}

func resultToResponse(r *domrun.RankedResult) resultResponse {
	msg := r.Message()
	v := r.Verdict()
	return resultResponse{
		Position: r.Position(),
		Message:  messageToResponse(msg),
		Verdict: verdictResponse{
			Relevant:   v.Relevant(),
			Confidence: v.Confidence(),
			Rationale:  v.Rationale(),
			Degraded:   v.IsDegraded(),
		},
	}
}

func statsToResponse(st usageuc.Stats) statsResponse {
	m := st.Usage.Metrics()
	b := st.Usage.Budget()

	resp := statsResponse{
		Runs:     st.Runs,
		Messages: st.Messages,
		Analyses: st.Analyses,
		Usage: usageResponse{
			Date:             st.Usage.Date(),
			Calls:            m.Calls(),
			PromptTokens:     m.PromptTokens(),
			CompletionTokens: m.CompletionTokens(),
			TotalTokens:      m.TotalTokens(),
			StageCalls:       st.Usage.StageCalls(),
			Budget: budgetResponse{
				CallsLimit:      b.CallsLimit(),
				CallsRemaining:  b.CallsRemaining(),
				TokensLimit:     b.TokensLimit(),
				TokensRemaining: b.TokensRemaining(),
				Exhausted:       b.IsExhausted(),
			},
		},
	}
	if b.ResetsAt() > 0 {
		t := time.UnixMilli(b.ResetsAt()).UTC()
		resp.Usage.Budget.ResetsAt = &t
	}
	return resp
}
