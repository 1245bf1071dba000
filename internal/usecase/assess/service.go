// Package assess is the pipeline's synthesis stage: identity searches with
// enough relevant messages produce one expertise assessment of the target
// person. Synthesis failure never fails a run; callers skip the assessment.
package assess

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/lexsieve/lexsieve/internal/domain/assessment"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/llmjson"
)

// DefaultBodyLimit is the default per-message body truncation for
// synthesis prompts.
const DefaultBodyLimit = 800

// Service implements assessment synthesis over a text generator.
type Service struct {
	gen       Generator
	bodyLimit int
}

// New creates an assessment synthesizer.
func New(gen Generator) *Service {
	return &Service{gen: gen, bodyLimit: DefaultBodyLimit}
}

// WithBodyLimit configures the per-message body truncation in bytes.
func (s *Service) WithBodyLimit(limit int) *Service {
	if limit > 0 {
		s.bodyLimit = limit
	}
	return s
}

var (
	scoreMin = 0.0
	scoreMax = 100.0
)

var assessSchema = llmjson.Schema{Fields: []llmjson.Field{
	{Name: "score", Kind: llmjson.Number, Required: true, Min: &scoreMin, Max: &scoreMax},
	{Name: "summary", Kind: llmjson.String},
}}

// topics is validated structurally during decoding: the typed field rejects
// anything that is not an array of strings.
type assessResponse struct {
	Score   float64  `json:"score"`
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// Synthesize builds an expertise assessment of the named person from the
// given relevant messages. Malformed model output is retried once with a
// stricter instruction; the second failure surfaces as an error the caller
// logs and skips.
func (s *Service) Synthesize(
	ctx context.Context, personName string, msgs []message.Message,
) (assessment.Assessment, error) {
	prompt := assessPrompt(personName, msgs, s.bodyLimit)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return assessment.Assessment{}, fmt.Errorf("assess: %w", err)
	}
	a, derr := decode(raw)
	if derr == nil {
		return a, nil
	}

	raw, err = s.gen.Generate(ctx, prompt+strictRetrySuffix)
	if err != nil {
		return assessment.Assessment{}, fmt.Errorf("assess retry: %w", err)
	}
	a, derr = decode(raw)
	if derr == nil {
		return a, nil
	}
	return assessment.Assessment{}, fmt.Errorf("assess: %w", derr)
}

func decode(raw string) (assessment.Assessment, error) {
	var resp assessResponse
	if err := llmjson.Decode(raw, assessSchema, &resp); err != nil {
		return assessment.Assessment{}, err
	}
	a, err := assessment.New(int(math.Round(resp.Score)), strings.TrimSpace(resp.Summary), resp.Topics)
	if err != nil {
		return assessment.Assessment{}, &llmjson.Error{Reason: err.Error(), Raw: raw}
	}
	return a, nil
}
