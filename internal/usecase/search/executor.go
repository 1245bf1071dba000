package search

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// tally aggregates the scoring pass. relevantMsgs carries the relevant
// messages in retrieval order for assessment synthesis.
type tally struct {
	scored       int
	relevant     int
	degraded     int
	relevantMsgs []message.Message
}

// execute drives one run from running to a terminal state. It is the run's
// single writer; only Cancel, serialized through ex.mu, may preempt it.
func (s *Service) execute(ctx context.Context, ex *execution, r domrun.Run) {
	logger := s.logger.With(zap.String("run_id", r.ID()))
	started := s.now()

	if err := r.Start(s.now()); err != nil {
		logger.Error("start run", zap.Error(err))
		return
	}
	if err := s.runs.Save(ctx, r); err != nil {
		logger.Error("save run", zap.Error(err))
		return
	}

	searchSpec, err := s.trans.Translate(ctx, r.Resolved(), s.now())
	if err != nil {
		s.fail(ctx, ex, r, failureTranslation, err)
		return
	}
	r.SetSpecification(searchSpec, s.now())
	if err := s.runs.Save(ctx, r); err != nil {
		logger.Error("save run", zap.Error(err))
		return
	}

	msgs, err := s.archive.Fetch(ctx, searchSpec)
	if err != nil {
		s.fail(ctx, ex, r, failureRetrieval, err)
		return
	}
	msgs = dedupe(msgs)
	r.RecordRetrieved(len(msgs), s.now())
	if err := s.runs.Save(ctx, r); err != nil {
		logger.Error("save run", zap.Error(err))
		return
	}
	if err := s.messages.PutAll(ctx, msgs); err != nil {
		s.fail(ctx, ex, r, failureStorage, err)
		return
	}
	if err := s.runs.SaveResultOrder(ctx, r.ID(), archiveIDs(msgs)); err != nil {
		s.fail(ctx, ex, r, failureStorage, err)
		return
	}

	var target *spec.Identity
	ident, identitySearch := searchSpec.IdentityTarget(r.Resolved().Text())
	if identitySearch {
		target = &ident
	}

	t := s.scoreAll(ctx, r.ID(), r.Resolved(), target, msgs, logger)
	if ctx.Err() != nil {
		// Canceled: the cancel path owns the terminal transition.
		return
	}

	if identitySearch && t.relevant >= minAssessmentMessages {
		a, err := s.assessor.Synthesize(ctx, ident.Name, t.relevantMsgs)
		if err != nil {
			logger.Warn("assessment skipped", zap.Error(err))
		} else {
			r.AttachAssessment(a, s.now())
		}
	}

	if s.complete(ctx, ex, r, t) {
		metrics.RunDuration.Observe(s.now().Sub(started).Seconds())
		logger.Info("run completed",
			zap.Int("retrieved", r.Retrieved()),
			zap.Int("scored", t.scored),
			zap.Int("relevant", t.relevant),
			zap.Int("degraded", t.degraded))
	}
}

// scoreAll fans scoring out over the candidates, at most maxInFlight calls
// in flight. Verdicts land in a per-candidate slot so completion order never
// affects the outcome; a canceled context stops admission and discards any
// verdicts still in flight.
func (s *Service) scoreAll(
	ctx context.Context, runID string, q question.Resolved,
	target *spec.Identity, msgs []message.Message, logger *zap.Logger,
) tally {
	sem := semaphore.NewWeighted(s.maxInFlight)
	verdicts := make([]*verdict.Verdict, len(msgs))

	var wg sync.WaitGroup
	for i, msg := range msgs {
		i, msg := i, msg
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			v, err := s.scorer.Score(ctx, q, target, msg)
			if err != nil {
				return
			}
			if ctx.Err() != nil {
				// Canceled while the call was in flight: discard.
				return
			}
			if _, err := s.analyses.Put(ctx, runID, msg.ArchiveID(), v); err != nil {
				logger.Warn("store verdict",
					zap.String("archive_id", msg.ArchiveID()),
					zap.Error(err))
				return
			}
			verdicts[i] = &v
		}()
	}
	wg.Wait()

	var t tally
	for i, v := range verdicts {
		if v == nil {
			continue
		}
		t.scored++
		if v.IsDegraded() {
			t.degraded++
		}
		if v.Relevant() {
			t.relevant++
			t.relevantMsgs = append(t.relevantMsgs, msgs[i])
		}
	}
	return t
}

// fail moves the run to failed unless a cancel got there first.
func (s *Service) fail(ctx context.Context, ex *execution, r domrun.Run, reason string, cause error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("run failed",
		zap.String("run_id", r.ID()),
		zap.String("reason", reason),
		zap.Error(cause))
	if err := r.Fail(reason, s.now()); err != nil {
		s.logger.Error("fail run", zap.String("run_id", r.ID()), zap.Error(err))
		return
	}
	if err := s.runs.Save(ctx, r); err != nil {
		s.logger.Error("save run", zap.String("run_id", r.ID()), zap.Error(err))
		return
	}
	metrics.RunsTotal.WithLabelValues("failed").Inc()
}

// complete moves the run to completed with its final tallies, reporting
// whether the transition happened (false when a cancel won the race).
func (s *Service) complete(ctx context.Context, ex *execution, r domrun.Run, t tally) bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if err := r.Complete(t.scored, t.relevant, t.degraded, s.now()); err != nil {
		s.logger.Error("complete run", zap.String("run_id", r.ID()), zap.Error(err))
		return false
	}
	if err := s.runs.Save(ctx, r); err != nil {
		s.logger.Error("save run", zap.String("run_id", r.ID()), zap.Error(err))
		return false
	}
	metrics.RunsTotal.WithLabelValues("completed").Inc()
	return true
}

// dedupe keeps the first occurrence of each archive id, preserving the
// archive's reported order.
func dedupe(msgs []message.Message) []message.Message {
	seen := make(map[string]bool, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if seen[m.ArchiveID()] {
			continue
		}
		seen[m.ArchiveID()] = true
		out = append(out, m)
	}
	return out
}

func archiveIDs(msgs []message.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ArchiveID()
	}
	return ids
}
