// Package score is the pipeline's third stage: it judges one candidate
// message against the resolved question and emits a relevance verdict.
// Identity-filter questions are matched deterministically; everything else
// is a content-sufficiency judgment by the model.
package score

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
	"github.com/lexsieve/lexsieve/internal/llmjson"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// DefaultBodyLimit is the default body truncation for scoring prompts.
const DefaultBodyLimit = 2000

// Service implements the relevance scorer over a text generator.
type Service struct {
	gen       Generator
	bodyLimit int
	logger    *zap.Logger
}

// New creates a relevance scorer.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, bodyLimit: DefaultBodyLimit, logger: logger}
}

// WithBodyLimit configures the prompt body truncation in bytes.
func (s *Service) WithBodyLimit(limit int) *Service {
	if limit > 0 {
		s.bodyLimit = limit
	}
	return s
}

var (
	confidenceMin = 0.0
	confidenceMax = 1.0
)

var scoreSchema = llmjson.Schema{Fields: []llmjson.Field{
	{Name: "is_relevant", Kind: llmjson.Bool, Required: true},
	{Name: "confidence", Kind: llmjson.Number, Required: true, Min: &confidenceMin, Max: &confidenceMax},
	{Name: "reasoning", Kind: llmjson.String},
}}

type scoreResponse struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Score judges one message. target, when non-nil, selects identity mode: the
// verdict is computed deterministically from the sender and text, no model
// call. Content mode asks the model; any failure after one retry degrades to
// the conservative not-relevant verdict, so a bad response can never inflate
// a result set. Only cancellation is surfaced as an error.
func (s *Service) Score(
	ctx context.Context, q question.Resolved, target *spec.Identity, msg message.Message,
) (verdict.Verdict, error) {
	if target != nil {
		v := identityVerdict(*target, msg)
		metrics.ScoringsTotal.WithLabelValues("identity", "ok").Inc()
		return v, nil
	}
	return s.judgeContent(ctx, q, msg)
}

func (s *Service) judgeContent(ctx context.Context, q question.Resolved, msg message.Message) (verdict.Verdict, error) {
	prompt := scorePrompt(q.Text(), msg, s.bodyLimit)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return s.degrade(ctx, msg, err)
	}
	v, derr := decode(raw)
	if derr == nil {
		metrics.ScoringsTotal.WithLabelValues("content", "ok").Inc()
		return v, nil
	}

	raw, err = s.gen.Generate(ctx, prompt+strictRetrySuffix)
	if err != nil {
		return s.degrade(ctx, msg, err)
	}
	v, derr = decode(raw)
	if derr == nil {
		metrics.ScoringsTotal.WithLabelValues("content", "ok").Inc()
		return v, nil
	}
	return s.degrade(ctx, msg, derr)
}

// degrade downgrades a failed evaluation to the conservative verdict.
// Cancellation is not a judgment: it propagates instead.
func (s *Service) degrade(ctx context.Context, msg message.Message, cause error) (verdict.Verdict, error) {
	if ctx.Err() != nil {
		return verdict.Verdict{}, ctx.Err()
	}
	s.logger.Warn("scoring degraded",
		zap.String("archive_id", msg.ArchiveID()),
		zap.Error(cause))
	metrics.ScoringsTotal.WithLabelValues("content", "degraded").Inc()
	return verdict.Degraded(), nil
}

func decode(raw string) (verdict.Verdict, error) {
	var resp scoreResponse
	if err := llmjson.Decode(raw, scoreSchema, &resp); err != nil {
		return verdict.Verdict{}, err
	}
	v, err := verdict.New(resp.IsRelevant, resp.Confidence, strings.TrimSpace(resp.Reasoning))
	if err != nil {
		return verdict.Verdict{}, &llmjson.Error{Reason: err.Error(), Raw: raw}
	}
	return v, nil
}
