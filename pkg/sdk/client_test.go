package lexsieve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Helpers ---

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func respond(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("write response: %v", err)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return m
}

const completedRunBody = `{
	"id": "run-1",
	"status": "completed",
	"question": "Does a mechanics lien survive foreclosure?",
	"resolved_question": "Does a mechanics lien survive foreclosure?",
	"specification": {
		"keywords_any": ["lien", "foreclosure"],
		"keywords_phrase": "mechanics lien",
		"listserv": "all",
		"attachment_filter": "all",
		"search_in": "subject_and_body"
	},
	"retrieved": 3,
	"scored": 3,
	"relevant": 2,
	"assessment": {"score": 82, "summary": "Active lien practitioner.", "topics": ["liens"]},
	"created_at": "2025-08-20T10:00:00Z",
	"updated_at": "2025-08-20T10:00:09Z",
	"completed_at": "2025-08-20T10:00:09Z"
}`

// --- Tests ---

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestCreateSearch_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/searches" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body := decodeBody(t, r)
		if body["question"] != "Does a mechanics lien survive foreclosure?" {
			t.Errorf("question = %v", body["question"])
		}
		respond(t, w, http.StatusAccepted, completedRunBody)
	})

	run, err := client.CreateSearch(context.Background(), "Does a mechanics lien survive foreclosure?")
	if err != nil {
		t.Fatalf("CreateSearch: %v", err)
	}
	if run.ID != "run-1" || run.Status != StatusCompleted {
		t.Errorf("run = %s/%s", run.ID, run.Status)
	}
	if !run.Terminal() || run.NeedsClarification() {
		t.Error("completed run misclassified")
	}
	if run.Specification == nil || run.Specification.Phrase != "mechanics lien" {
		t.Errorf("specification = %+v", run.Specification)
	}
	if len(run.Specification.KeywordsAny) != 2 || run.Specification.KeywordsAny[0] != "lien" {
		t.Errorf("keywords_any = %v", run.Specification.KeywordsAny)
	}
	if run.Retrieved != 3 || run.Scored != 3 || run.Relevant != 2 {
		t.Errorf("counts = %d/%d/%d", run.Retrieved, run.Scored, run.Relevant)
	}
	if run.Assessment == nil || run.Assessment.Score != 82 {
		t.Errorf("assessment = %+v", run.Assessment)
	}
	if run.CompletedAt == nil || !run.CompletedAt.Equal(time.Date(2025, 8, 20, 10, 0, 9, 0, time.UTC)) {
		t.Errorf("completed_at = %v", run.CompletedAt)
	}
}

func TestCreateSearch_FollowUpShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, http.StatusAccepted, `{
			"id": "run-2",
			"status": "pending",
			"question": "Chris Johnson",
			"follow_up_question": "Are you after messages BY Chris Johnson or ABOUT them?",
			"retrieved": 0, "scored": 0, "relevant": 0,
			"created_at": "2025-08-20T10:00:00Z",
			"updated_at": "2025-08-20T10:00:00Z"
		}`)
	})

	run, err := client.CreateSearch(context.Background(), "Chris Johnson")
	if err != nil {
		t.Fatalf("CreateSearch: %v", err)
	}
	if !run.NeedsClarification() {
		t.Fatal("expected NeedsClarification")
	}
	if run.Terminal() {
		t.Fatal("pending run reported terminal")
	}
	if run.FollowUpQuestion == "" {
		t.Error("follow-up question missing")
	}
}

func TestAnswerSearch_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/searches/run-2/answer" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["answer"] != "messages BY them" {
			t.Errorf("answer = %v", body["answer"])
		}
		respond(t, w, http.StatusAccepted, `{
			"id": "run-2",
			"status": "running",
			"question": "Chris Johnson",
			"clarification_answer": "messages BY them",
			"resolved_question": "Chris Johnson. Specifically: messages BY them",
			"retrieved": 0, "scored": 0, "relevant": 0,
			"created_at": "2025-08-20T10:00:00Z",
			"updated_at": "2025-08-20T10:00:03Z"
		}`)
	})

	run, err := client.AnswerSearch(context.Background(), "run-2", "messages BY them")
	if err != nil {
		t.Fatalf("AnswerSearch: %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("status = %s", run.Status)
	}
	if run.ResolvedQuestion != "Chris Johnson. Specifically: messages BY them" {
		t.Errorf("resolved = %q", run.ResolvedQuestion)
	}
}

func TestGetSearch_NotFoundSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, http.StatusNotFound, `{"code":"run_not_found","message":"search run not found"}`)
	})

	_, err := client.GetSearch(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "run_not_found" {
		t.Errorf("apiErr = %d/%s", apiErr.StatusCode, apiErr.Code)
	}
}

func TestListSearches_PassesLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		respond(t, w, http.StatusOK, `{"items":[
			{"id":"run-9","status":"running","question":"q9","retrieved":0,"scored":0,"relevant":0,
			 "created_at":"2025-08-20T10:05:00Z","updated_at":"2025-08-20T10:05:00Z"},
			{"id":"run-8","status":"completed","question":"q8","retrieved":1,"scored":1,"relevant":1,
			 "created_at":"2025-08-20T10:00:00Z","updated_at":"2025-08-20T10:01:00Z"}
		],"total":2}`)
	})

	runs, err := client.ListSearches(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListSearches: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-9" || runs[1].ID != "run-8" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestListSearches_OmitsZeroLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		respond(t, w, http.StatusOK, `{"items":[],"total":0}`)
	})

	runs, err := client.ListSearches(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSearches: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestResults_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/searches/run-1/results" {
			t.Errorf("path = %s", r.URL.Path)
		}
		respond(t, w, http.StatusOK, `{"items":[
			{"position":1,
			 "message":{"archive_id":"w-001","sender":"Chris Johnson","subject":"Lien priority",
			            "listserv":"lawnet","posted_at":"2024-11-02T09:30:00Z","has_attachment":true,
			            "url":"https://archive.example.com/w-001"},
			 "verdict":{"relevant":true,"confidence":0.95,"rationale":"authored by the named person"}},
			{"position":2,
			 "message":{"archive_id":"w-002","subject":"Re: Lien priority","has_attachment":false},
			 "verdict":{"relevant":false,"confidence":0,"rationale":"scoring unavailable","degraded":true}}
		],"total":2}`)
	})

	results, err := client.Results(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d", len(results))
	}
	first := results[0]
	if first.Position != 1 || first.Message.ArchiveID != "w-001" {
		t.Errorf("first = %+v", first)
	}
	if !first.Verdict.Relevant || first.Verdict.Confidence != 0.95 {
		t.Errorf("first verdict = %+v", first.Verdict)
	}
	if first.Message.PostedAt == nil || !first.Message.HasAttachment {
		t.Errorf("first message = %+v", first.Message)
	}
	second := results[1]
	if !second.Verdict.Degraded || second.Verdict.Confidence != 0 {
		t.Errorf("second verdict = %+v", second.Verdict)
	}
}

func TestCancelSearch_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/searches/run-1/cancel" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		respond(t, w, http.StatusAccepted, `{
			"id":"run-1","status":"failed","question":"q","failure":"canceled",
			"retrieved":0,"scored":0,"relevant":0,
			"created_at":"2025-08-20T10:00:00Z","updated_at":"2025-08-20T10:00:05Z",
			"completed_at":"2025-08-20T10:00:05Z"
		}`)
	})

	run, err := client.CancelSearch(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("CancelSearch: %v", err)
	}
	if !run.Terminal() || run.Failure != "canceled" {
		t.Errorf("run = %+v", run)
	}
}

func TestGetMessage_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/w-001" {
			t.Errorf("path = %s", r.URL.Path)
		}
		respond(t, w, http.StatusOK, `{
			"archive_id":"w-001","sender":"Chris Johnson","subject":"Lien priority",
			"body":"The lien attaches on recording.","listserv":"lawnet",
			"posted_at":"2024-11-02T09:30:00Z","has_attachment":false
		}`)
	})

	msg, err := client.GetMessage(context.Background(), "w-001")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.Sender != "Chris Johnson" || msg.Body == "" || msg.HasAttachment {
		t.Errorf("msg = %+v", msg)
	}
}

func TestChannels_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/channels" {
			t.Errorf("path = %s", r.URL.Path)
		}
		respond(t, w, http.StatusOK, `{"items":[
			{"id":"lawnet","name":"General Law Network"},
			{"id":"probate","name":"Probate and Estates"}
		],"total":2}`)
	})

	channels, err := client.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) != 2 || channels[0].ID != "lawnet" {
		t.Errorf("channels = %+v", channels)
	}
}

func TestStats_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		respond(t, w, http.StatusOK, `{
			"runs":{"completed":4,"failed":1},
			"messages":120,"analyses":110,
			"usage":{
				"date":"2025-08-20","calls":40,
				"prompt_tokens":50000,"completion_tokens":11000,"total_tokens":61000,
				"stage_calls":{"score":30,"translate":5},
				"budget":{"calls_limit":200,"calls_remaining":160,
				          "tokens_limit":1000000,"tokens_remaining":939000,
				          "exhausted":false,"resets_at":"2025-08-21T00:00:00Z"}
			}
		}`)
	})

	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Runs["completed"] != 4 || stats.Messages != 120 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Usage.TotalTokens != 61000 || stats.Usage.StageCalls["score"] != 30 {
		t.Errorf("usage = %+v", stats.Usage)
	}
	if stats.Usage.Budget.Exhausted || stats.Usage.Budget.CallsRemaining != 160 {
		t.Errorf("budget = %+v", stats.Usage.Budget)
	}
	if stats.Usage.Budget.ResetsAt == nil {
		t.Error("resets_at missing")
	}
}

func TestHealth_OK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		respond(t, w, http.StatusOK, `{"status":"ok","checks":{"storage":"ok","generation":"ok"}}`)
	})

	h, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "ok" || h.Checks["storage"] != "ok" {
		t.Errorf("health = %+v", h)
	}
}

func TestHealth_DegradedIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, http.StatusServiceUnavailable,
			`{"status":"degraded","checks":{"storage":"ok","generation":"error"}}`)
	})

	h, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "degraded" || h.Checks["generation"] != "error" {
		t.Errorf("health = %+v", h)
	}
}

func TestFailureShapes_MapToSentinels(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"budget exhausted", http.StatusTooManyRequests,
			`{"code":"budget_exhausted","message":"daily generation budget exhausted"}`, ErrBudgetExhausted},
		{"generation down", http.StatusBadGateway,
			`{"code":"generation_unavailable","message":"generation service unavailable"}`, ErrGenerationUnavailable},
		{"no pending clarification", http.StatusConflict,
			`{"code":"no_pending_clarification","message":"no pending clarification"}`, ErrNoPendingClarification},
		{"run finished", http.StatusConflict,
			`{"code":"run_finished","message":"search run already finished"}`, ErrRunTerminal},
		{"invalid question", http.StatusBadRequest,
			`{"code":"invalid_question","message":"question must not be empty"}`, ErrInvalidQuestion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				respond(t, w, tc.status, tc.body)
			})

			_, err := client.CreateSearch(context.Background(), "q")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNonJSONFailureBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>upstream proxy error</html>")
	})

	_, err := client.GetSearch(context.Background(), "run-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "unknown" || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Authorization = %q", got)
		}
		respond(t, w, http.StatusOK, `{"items":[],"total":0}`)
	}, WithAPIKey("secret-key"))

	if _, err := client.Channels(context.Background()); err != nil {
		t.Fatalf("Channels: %v", err)
	}
}

func TestWithPrometheus_RegistersAndReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, http.StatusOK, `{"items":[],"total":0}`)
	}

	first := newTestClient(t, handler, WithPrometheus(reg))
	// Second client on the same registry must reuse the collectors.
	second := newTestClient(t, handler, WithPrometheus(reg))

	if _, err := first.Channels(context.Background()); err != nil {
		t.Fatalf("first.Channels: %v", err)
	}
	if _, err := second.Channels(context.Background()); err != nil {
		t.Fatalf("second.Channels: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != "lexsieve_sdk_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 2 {
		t.Errorf("operations_total = %v, want 2", total)
	}
}
