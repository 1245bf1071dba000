package run

import (
	"fmt"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/assessment"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
)

// Run is the search-run aggregate. It owns zero-or-one clarification
// exchange, one specification once produced, and the result counters. Only
// the orchestrator mutates a run.
type Run struct {
	id          string
	status      Status
	exchange    question.Exchange
	resolved    question.Resolved
	searchSpec  *spec.Spec
	retrieved   int
	scored      int
	relevant    int
	degraded    int
	failure     string
	assessment  *assessment.Assessment
	createdAt   time.Time
	updatedAt   time.Time
	completedAt time.Time
}

// New creates a pending run for the given question.
func New(id, questionText string, now time.Time) (Run, error) {
	if id == "" {
		return Run{}, fmt.Errorf("run id is required")
	}
	ex, err := question.NewExchange(questionText)
	if err != nil {
		return Run{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	return Run{
		id:        id,
		status:    StatusPending,
		exchange:  ex,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct creates a Run without validation (storage hydration).
func Reconstruct(
	id string, status Status, ex question.Exchange, resolved question.Resolved,
	searchSpec *spec.Spec, retrieved, scored, relevant, degraded int,
	failure string, asmt *assessment.Assessment,
	createdAt, updatedAt, completedAt time.Time,
) Run {
	return Run{
		id: id, status: status, exchange: ex, resolved: resolved,
		searchSpec: searchSpec,
		retrieved:  retrieved, scored: scored, relevant: relevant, degraded: degraded,
		failure: failure, assessment: asmt,
		createdAt: createdAt, updatedAt: updatedAt, completedAt: completedAt,
	}
}

// AskClarification records the gate's single follow-up question. The run
// stays pending and remains resumable.
func (r *Run) AskClarification(followUp string, now time.Time) error {
	if r.status != StatusPending {
		return fmt.Errorf("%w: status %s", domain.ErrRunTerminal, r.status)
	}
	if err := r.exchange.Ask(followUp); err != nil {
		return err
	}
	r.updatedAt = now
	return nil
}

// AnswerClarification folds the user's answer into a new resolved question.
func (r *Run) AnswerClarification(answer string, now time.Time) error {
	if r.status.IsTerminal() {
		return fmt.Errorf("%w: status %s", domain.ErrRunTerminal, r.status)
	}
	if r.exchange.FollowUp() == "" || r.exchange.Answered() {
		return domain.ErrNoPendingClarification
	}
	if err := r.exchange.Answer(answer); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	resolved, err := r.exchange.Resolve()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	r.resolved = resolved
	r.updatedAt = now
	return nil
}

// MarkResolved adopts the original question as the resolved question (the
// specific path, no clarification needed).
func (r *Run) MarkResolved(now time.Time) error {
	resolved, err := question.NewResolved(r.exchange.Original())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	r.resolved = resolved
	r.updatedAt = now
	return nil
}

// Start transitions pending -> running. A resolved question must exist.
func (r *Run) Start(now time.Time) error {
	if r.resolved.IsZero() {
		return fmt.Errorf("run %s has no resolved question", r.id)
	}
	return r.transition(StatusRunning, now)
}

// SetSpecification attaches the translated specification.
func (r *Run) SetSpecification(s spec.Spec, now time.Time) {
	r.searchSpec = &s
	r.updatedAt = now
}

// RecordRetrieved stores how many candidates the collaborator returned.
func (r *Run) RecordRetrieved(n int, now time.Time) {
	r.retrieved = n
	r.updatedAt = now
}

// Complete transitions running -> completed with the final tallies.
func (r *Run) Complete(scored, relevant, degraded int, now time.Time) error {
	if err := r.transition(StatusCompleted, now); err != nil {
		return err
	}
	r.scored = scored
	r.relevant = relevant
	r.degraded = degraded
	r.completedAt = now
	return nil
}

// Fail transitions to failed with a user-safe explanation.
func (r *Run) Fail(reason string, now time.Time) error {
	if err := r.transition(StatusFailed, now); err != nil {
		return err
	}
	r.failure = reason
	r.completedAt = now
	return nil
}

// AttachAssessment stores the synthesized expert assessment.
func (r *Run) AttachAssessment(a assessment.Assessment, now time.Time) {
	r.assessment = &a
	r.updatedAt = now
}

func (r *Run) transition(to Status, now time.Time) error {
	if !r.status.CanTransition(to) {
		return domain.NewInvalidTransition(string(r.status), string(to))
	}
	r.status = to
	r.updatedAt = now
	return nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Status returns the lifecycle state.
func (r *Run) Status() Status { return r.status }

// Question returns the user's original question.
func (r *Run) Question() string { return r.exchange.Original() }

// FollowUp returns the pending follow-up question, if any.
func (r *Run) FollowUp() string { return r.exchange.FollowUp() }

// Exchange returns the clarification exchange.
func (r *Run) Exchange() question.Exchange { return r.exchange }

// Resolved returns the resolved question (zero until clarification settles).
func (r *Run) Resolved() question.Resolved { return r.resolved }

// Specification returns the translated specification, or nil.
func (r *Run) Specification() *spec.Spec { return r.searchSpec }

// Retrieved returns the candidate count reported by retrieval.
func (r *Run) Retrieved() int { return r.retrieved }

// Scored returns how many candidates received a verdict.
func (r *Run) Scored() int { return r.scored }

// Relevant returns how many verdicts were relevant.
func (r *Run) Relevant() int { return r.relevant }

// Degraded returns how many verdicts were failure downgrades.
func (r *Run) Degraded() int { return r.degraded }

// Failure returns the user-safe failure message, if the run failed.
func (r *Run) Failure() string { return r.failure }

// Assessment returns the expert assessment, or nil.
func (r *Run) Assessment() *assessment.Assessment { return r.assessment }

// CreatedAt returns the creation time.
func (r *Run) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last mutation time.
func (r *Run) UpdatedAt() time.Time { return r.updatedAt }

// CompletedAt returns when the run reached a terminal state (zero otherwise).
func (r *Run) CompletedAt() time.Time { return r.completedAt }
