// Package clarify is the pipeline's first stage: it judges whether a
// research question carries enough intent to search on, and when it does
// not, produces the single follow-up question offered to the user.
package clarify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/llmjson"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// Outcome is the gate's judgment of one question.
type Outcome struct {
	vague    bool
	followUp string
}

// Specific is the outcome for a question that can be searched as-is.
func Specific() Outcome { return Outcome{} }

// Vague is the outcome for a question that needs the given follow-up
// answered first.
func Vague(followUp string) Outcome { return Outcome{vague: true, followUp: followUp} }

// IsVague reports whether the question needs clarification.
func (o Outcome) IsVague() bool { return o.vague }

// FollowUp returns the clarifying question for a vague outcome.
func (o Outcome) FollowUp() string { return o.followUp }

// Service implements the clarification gate over a text generator.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a clarification gate.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

var gateSchema = llmjson.Schema{Fields: []llmjson.Field{
	{Name: "is_vague", Kind: llmjson.Bool, Required: true},
	{Name: "follow_up_question", Kind: llmjson.String},
}}

type gateResponse struct {
	IsVague  bool   `json:"is_vague"`
	FollowUp string `json:"follow_up_question"`
}

// Evaluate judges the question. Malformed model output is retried once with
// a stricter instruction; a second malformed reply degrades to specific, so
// an unparseable judgment can only ever let a question through, never block
// it. Generation transport failures propagate to the caller.
func (s *Service) Evaluate(ctx context.Context, questionText string) (Outcome, error) {
	raw, err := s.gen.Generate(ctx, gatePrompt(questionText))
	if err != nil {
		return Outcome{}, fmt.Errorf("clarify: %w", err)
	}
	out, derr := decode(raw)
	if derr == nil {
		count(out)
		return out, nil
	}

	raw, err = s.gen.Generate(ctx, gatePrompt(questionText)+strictRetrySuffix)
	if err != nil {
		return Outcome{}, fmt.Errorf("clarify retry: %w", err)
	}
	out, derr = decode(raw)
	if derr == nil {
		count(out)
		return out, nil
	}

	s.logger.Warn("clarify degraded", zap.String("reason", parseReason(derr)))
	metrics.ClarificationsTotal.WithLabelValues("degraded").Inc()
	return Specific(), nil
}

func decode(raw string) (Outcome, error) {
	var resp gateResponse
	if err := llmjson.Decode(raw, gateSchema, &resp); err != nil {
		return Outcome{}, err
	}
	if !resp.IsVague {
		return Specific(), nil
	}
	followUp := strings.TrimSpace(resp.FollowUp)
	if followUp == "" {
		// The gate cannot ask nothing.
		return Outcome{}, &llmjson.Error{Reason: "is_vague without follow_up_question", Raw: raw}
	}
	return Vague(followUp), nil
}

func count(o Outcome) {
	verdict := "specific"
	if o.IsVague() {
		verdict = "vague"
	}
	metrics.ClarificationsTotal.WithLabelValues(verdict).Inc()
}

func parseReason(err error) string {
	var perr *llmjson.Error
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return err.Error()
}
