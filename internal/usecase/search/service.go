// Package search orchestrates search runs end to end: the clarification
// gate, query translation, archive retrieval, bounded-concurrency relevance
// scoring, and expertise assessment for identity searches. Only this package
// mutates a run.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain/message"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

const (
	// DefaultMaxConcurrentScoring bounds in-flight scoring calls per run.
	DefaultMaxConcurrentScoring = 4
	// DefaultListLimit is the page size for run listings.
	DefaultListLimit = 20

	// minAssessmentMessages is how many relevant messages an identity run
	// needs before an expertise assessment is worth synthesizing.
	minAssessmentMessages = 3
)

// User-safe failure reasons stored on a failed run. Internal error detail
// stays in the logs.
const (
	failureScreening   = "the question could not be screened"
	failureTranslation = "the question could not be interpreted as an archive search"
	failureRetrieval   = "the archive could not be searched"
	failureStorage     = "search results could not be stored"
	failureCanceled    = "canceled"
)

// execution is one live run: its cancel signal plus the write mutex that
// serializes Cancel against the executor's terminal transition.
type execution struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Service coordinates search runs. Each launched run executes on a single
// background goroutine, registered by id so Cancel can signal it.
type Service struct {
	runs     RunRepository
	messages MessageStore
	analyses AnalysisStore
	gate     Clarifier
	trans    Translator
	scorer   Scorer
	assessor Assessor
	archive  Retriever
	logger   *zap.Logger

	maxInFlight int64
	listLimit   int
	now         func() time.Time
	newID       func() string

	mu     sync.Mutex
	active map[string]*execution
	wg     sync.WaitGroup
}

// New creates a search orchestrator.
func New(
	runs RunRepository, messages MessageStore, analyses AnalysisStore,
	gate Clarifier, trans Translator, scorer Scorer, assessor Assessor,
	archive Retriever, logger *zap.Logger,
) *Service {
	return &Service{
		runs: runs, messages: messages, analyses: analyses,
		gate: gate, trans: trans, scorer: scorer, assessor: assessor,
		archive: archive, logger: logger,
		maxInFlight: DefaultMaxConcurrentScoring,
		listLimit:   DefaultListLimit,
		now:         time.Now,
		newID:       uuid.NewString,
		active:      make(map[string]*execution),
	}
}

// WithMaxConcurrentScoring configures the scoring concurrency bound.
func (s *Service) WithMaxConcurrentScoring(n int) *Service {
	if n > 0 {
		s.maxInFlight = int64(n)
	}
	return s
}

// WithListLimit configures the default page size for List.
func (s *Service) WithListLimit(n int) *Service {
	if n > 0 {
		s.listLimit = n
	}
	return s
}

// Create starts a run for the given question. The run is persisted pending,
// then screened by the gate: a vague question stores the follow-up and the
// run stays pending until Answer; a specific question launches execution in
// the background and Create returns immediately.
func (s *Service) Create(ctx context.Context, questionText string) (domrun.Run, error) {
	r, err := domrun.New(s.newID(), questionText, s.now())
	if err != nil {
		return domrun.Run{}, err
	}
	if err := s.runs.Save(ctx, r); err != nil {
		return domrun.Run{}, fmt.Errorf("save run: %w", err)
	}

	out, err := s.gate.Evaluate(ctx, r.Question())
	if err != nil {
		// The run's id never reached the caller; fail it rather than
		// leave it pending forever.
		s.abort(ctx, r, failureScreening, err)
		return domrun.Run{}, err
	}

	if out.IsVague() {
		if err := r.AskClarification(out.FollowUp(), s.now()); err != nil {
			return domrun.Run{}, err
		}
		if err := s.runs.Save(ctx, r); err != nil {
			return domrun.Run{}, fmt.Errorf("save run: %w", err)
		}
		return r, nil
	}

	if err := r.MarkResolved(s.now()); err != nil {
		return domrun.Run{}, err
	}
	if err := s.runs.Save(ctx, r); err != nil {
		return domrun.Run{}, fmt.Errorf("save run: %w", err)
	}
	s.launch(ctx, r)
	return r, nil
}

// Answer folds the user's answer to the pending follow-up and launches
// execution. The gate is not consulted again: one clarification round per
// run, and the answered question searches as-is.
func (s *Service) Answer(ctx context.Context, id, answerText string) (domrun.Run, error) {
	r, err := s.runs.Get(ctx, id)
	if err != nil {
		return domrun.Run{}, err
	}
	if err := r.AnswerClarification(answerText, s.now()); err != nil {
		return domrun.Run{}, err
	}
	if err := s.runs.Save(ctx, r); err != nil {
		return domrun.Run{}, fmt.Errorf("save run: %w", err)
	}
	s.launch(ctx, r)
	return r, nil
}

// Get returns one run.
func (s *Service) Get(ctx context.Context, id string) (domrun.Run, error) {
	return s.runs.Get(ctx, id)
}

// List returns the most recent runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]domrun.Run, error) {
	if limit <= 0 {
		limit = s.listLimit
	}
	return s.runs.List(ctx, limit)
}

// Message returns one stored candidate message by archive id.
func (s *Service) Message(ctx context.Context, archiveID string) (message.Message, error) {
	return s.messages.Get(ctx, archiveID)
}

// Results returns the run's scored candidates in retrieval order. While the
// run is still scoring, candidates without a verdict yet are omitted, so the
// ranking never depends on scoring completion order.
func (s *Service) Results(ctx context.Context, id string) ([]domrun.RankedResult, error) {
	if _, err := s.runs.Get(ctx, id); err != nil {
		return nil, err
	}
	ids, positions, err := s.runs.ResultOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("result order: %w", err)
	}
	if len(ids) == 0 {
		return []domrun.RankedResult{}, nil
	}
	msgs, err := s.messages.GetAll(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	verdicts, present, err := s.analyses.GetAll(ctx, id, ids)
	if err != nil {
		return nil, fmt.Errorf("load verdicts: %w", err)
	}
	results := make([]domrun.RankedResult, 0, len(ids))
	for i := range ids {
		if !present[i] {
			continue
		}
		results = append(results, domrun.NewRankedResult(positions[i], msgs[i], verdicts[i]))
	}
	return results, nil
}

// Cancel abandons a run. A running run is marked failed (canceled) and its
// executor signaled: in-flight scoring calls finish but their verdicts are
// discarded, and queued candidates are never started. A pending run is
// simply marked failed. Terminal runs cannot be canceled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	ex := s.active[id]
	s.mu.Unlock()

	// Holding the execution's write mutex keeps the executor's terminal
	// transition out of the window between our Get and Save.
	if ex != nil {
		ex.mu.Lock()
		defer ex.mu.Unlock()
	}

	r, err := s.runs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Fail(failureCanceled, s.now()); err != nil {
		// Already terminal: the executor finished first.
		return err
	}
	// Signal before persisting: the executor's mid-flight saves run on its
	// own context, so once canceled they cannot land after ours and
	// resurrect the run.
	if ex != nil {
		ex.cancel()
	}
	if err := s.runs.Save(ctx, r); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	metrics.RunsTotal.WithLabelValues("canceled").Inc()
	s.logger.Info("run canceled", zap.String("run_id", id))
	return nil
}

// Wait blocks until every background execution has finished. Called during
// shutdown once the HTTP server has stopped accepting work.
func (s *Service) Wait() {
	s.wg.Wait()
}

// launch registers the run and starts its executor on a context detached
// from the request, so the caller disconnecting cannot kill the run.
func (s *Service) launch(ctx context.Context, r domrun.Run) {
	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ex := &execution{cancel: cancel}

	s.mu.Lock()
	s.active[r.ID()] = ex
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			s.mu.Lock()
			delete(s.active, r.ID())
			s.mu.Unlock()
		}()
		s.execute(execCtx, ex, r)
	}()
}

// abort best-effort fails a run that errored before execution launched.
func (s *Service) abort(ctx context.Context, r domrun.Run, reason string, cause error) {
	s.logger.Warn("run aborted",
		zap.String("run_id", r.ID()),
		zap.String("reason", reason),
		zap.Error(cause))
	if err := r.Fail(reason, s.now()); err != nil {
		return
	}
	if err := s.runs.Save(ctx, r); err != nil {
		s.logger.Error("save aborted run", zap.String("run_id", r.ID()), zap.Error(err))
		return
	}
	metrics.RunsTotal.WithLabelValues("failed").Inc()
}
