package search

import (
	"context"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain/assessment"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
	"github.com/lexsieve/lexsieve/internal/usecase/clarify"
)

// RunRepository persists run aggregates and their result ordering.
type RunRepository interface {
	Save(ctx context.Context, r domrun.Run) error
	Get(ctx context.Context, id string) (domrun.Run, error)
	List(ctx context.Context, limit int) ([]domrun.Run, error)
	SaveResultOrder(ctx context.Context, runID string, archiveIDs []string) error
	ResultOrder(ctx context.Context, runID string) ([]string, []int, error)
}

// MessageStore persists retrieved candidate messages across runs.
type MessageStore interface {
	PutAll(ctx context.Context, msgs []message.Message) error
	Get(ctx context.Context, archiveID string) (message.Message, error)
	GetAll(ctx context.Context, archiveIDs []string) ([]message.Message, error)
}

// AnalysisStore persists at most one verdict per (run, message) pair. Put
// reports whether the verdict was created; an existing verdict is kept.
type AnalysisStore interface {
	Put(ctx context.Context, runID, archiveID string, v verdict.Verdict) (bool, error)
	GetAll(ctx context.Context, runID string, archiveIDs []string) ([]verdict.Verdict, []bool, error)
}

// Clarifier screens a new question for searchable intent.
type Clarifier interface {
	Evaluate(ctx context.Context, questionText string) (clarify.Outcome, error)
}

// Translator turns a resolved question into a retrieval specification.
type Translator interface {
	Translate(ctx context.Context, q question.Resolved, now time.Time) (spec.Spec, error)
}

// Scorer judges one candidate message against the resolved question. A
// non-nil target selects deterministic identity matching.
type Scorer interface {
	Score(ctx context.Context, q question.Resolved, target *spec.Identity, msg message.Message) (verdict.Verdict, error)
}

// Assessor synthesizes an expertise assessment from a person's relevant
// messages.
type Assessor interface {
	Synthesize(ctx context.Context, personName string, msgs []message.Message) (assessment.Assessment, error)
}

// Retriever fetches candidate messages from the archive in ranked order.
type Retriever interface {
	Fetch(ctx context.Context, s spec.Spec) ([]message.Message, error)
}
