package lexsieve

import "time"

// Run statuses. Pending and Running are in flight; Completed and Failed
// are terminal.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is the state of one search run.
type Run struct {
	ID                  string         `json:"id"`
	Status              string         `json:"status"`
	Question            string         `json:"question"`
	FollowUpQuestion    string         `json:"follow_up_question,omitempty"`
	ClarificationAnswer string         `json:"clarification_answer,omitempty"`
	ResolvedQuestion    string         `json:"resolved_question,omitempty"`
	Specification       *Specification `json:"specification,omitempty"`
	Retrieved           int            `json:"retrieved"`
	Scored              int            `json:"scored"`
	Relevant            int            `json:"relevant"`
	Degraded            int            `json:"degraded,omitempty"`
	Failure             string         `json:"failure,omitempty"`
	Assessment          *Assessment    `json:"assessment,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

// NeedsClarification reports whether the run is waiting on an answer to
// a follow-up question.
func (r Run) NeedsClarification() bool {
	return r.Status == StatusPending && r.FollowUpQuestion != ""
}

// Terminal reports whether the run has finished, successfully or not.
func (r Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Specification is the archive search form derived from the question.
type Specification struct {
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

// Assessment is the expert summary produced for person-focused runs.
type Assessment struct {
	Score   int      `json:"score"`
	Summary string   `json:"summary,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

// Message is one archived listserv message.
type Message struct {
	ArchiveID     string     `json:"archive_id"`
	Sender        string     `json:"sender,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body,omitempty"`
	Listserv      string     `json:"listserv,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	HasAttachment bool       `json:"has_attachment"`
	URL           string     `json:"url,omitempty"`
}

// Verdict is the relevance judgement for one message.
type Verdict struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// SearchResult is one ranked entry of a completed run.
type SearchResult struct {
	Position int     `json:"position"`
	Message  Message `json:"message"`
	Verdict  Verdict `json:"verdict"`
}

// Channel is a registered listserv channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Health is the aggregated health report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Stats aggregates pipeline counters and today's generation usage.
type Stats struct {
	Runs     map[string]int `json:"runs"`
	Messages int            `json:"messages"`
	Analyses int            `json:"analyses"`
	Usage    Usage          `json:"usage"`
}

// Usage is one day's generation usage.
type Usage struct {
	Date             string         `json:"date"`
	Calls            int            `json:"calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	StageCalls       map[string]int `json:"stage_calls,omitempty"`
	Budget           Budget         `json:"budget"`
}

// Budget is the state of the daily generation budget.
type Budget struct {
	CallsLimit      int        `json:"calls_limit"`
	CallsRemaining  int        `json:"calls_remaining"`
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	Exhausted       bool       `json:"exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}
