package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

// --- Mocks ---

// scriptedGenerator returns its responses in order, capturing prompts.
type scriptedGenerator struct {
	responses []string
	errs      []error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func newScorer(gen Generator) *Service {
	return New(gen, zap.NewNop())
}

func testMessage(t *testing.T, sender, subject, body string) message.Message {
	t.Helper()
	m, err := message.New(
		"msg-001", sender, subject, body, "lawnet",
		time.Date(2024, 11, 2, 9, 30, 0, 0, time.UTC), false,
		"https://archive.example.org/msg-001",
	)
	if err != nil {
		t.Fatalf("message.New() error = %v", err)
	}
	return m
}

func resolved(t *testing.T, text string) question.Resolved {
	t.Helper()
	q, err := question.NewResolved(text)
	if err != nil {
		t.Fatalf("NewResolved(%q) error = %v", text, err)
	}
	return q
}

// --- Tests ---

func TestScore_IdentityModeSkipsGenerator(t *testing.T) {
	gen := &scriptedGenerator{}
	sc := newScorer(gen)
	msg := testMessage(t, "Chris Johnson", "Lien resolution update", "New lien procedures attached.")
	target := &spec.Identity{Name: "Chris Johnson"}

	v, err := sc.Score(context.Background(), resolved(t, "messages from Chris Johnson"), target, msg)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if !v.Relevant() || v.Confidence() != verdict.AuthorMatchConfidence {
		t.Errorf("verdict = (%v, %v), want (true, %v)", v.Relevant(), v.Confidence(), verdict.AuthorMatchConfidence)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generator calls = %d, want 0 in identity mode", len(gen.prompts))
	}
}

func TestScore_ContentMode(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"is_relevant": true, "confidence": 0.82, "reasoning": "Explains the new C&R approval steps."}`,
	}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "C&R approval delays", "The board now requires...")

	v, err := sc.Score(context.Background(), resolved(t, "recent changes to settlement procedures"), nil, msg)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if !v.Relevant() {
		t.Error("Relevant() = false, want true")
	}
	if v.Confidence() != 0.82 {
		t.Errorf("Confidence() = %v, want 0.82", v.Confidence())
	}
	if v.IsDegraded() {
		t.Error("IsDegraded() = true, want false")
	}
	if v.Rationale() != "Explains the new C&R approval steps." {
		t.Errorf("Rationale() = %q", v.Rationale())
	}
}

func TestScore_PromptCarriesQuestionNotKeywords(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"is_relevant": false, "confidence": 0.2, "reasoning": "Off topic."}`,
	}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "Holiday schedule", "Office closed Friday.")

	if _, err := sc.Score(context.Background(), resolved(t, "recent changes to settlement procedures"), nil, msg); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, `"recent changes to settlement procedures"`) {
		t.Error("prompt missing the resolved question")
	}
	for _, part := range []string{"Pat Alvarez", "Holiday schedule", "Office closed Friday."} {
		if !strings.Contains(prompt, part) {
			t.Errorf("prompt missing message part %q", part)
		}
	}
}

func TestScore_BodyTruncation(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"is_relevant": true, "confidence": 0.9, "reasoning": "ok"}`,
	}}
	sc := newScorer(gen).WithBodyLimit(64)
	body := strings.Repeat("settlement terms ", 40)
	msg := testMessage(t, "Pat Alvarez", "Terms", body)

	if _, err := sc.Score(context.Background(), resolved(t, "settlement terms"), nil, msg); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "... [truncated]") {
		t.Error("prompt missing truncation marker")
	}
	if strings.Contains(prompt, body) {
		t.Error("prompt carries the full body despite the limit")
	}
}

func TestScore_RetryOnMalformed(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"This message is definitely relevant.",
		`{"is_relevant": true, "confidence": 0.75, "reasoning": "Substantially helpful."}`,
	}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "C&R approval delays", "The board now requires...")

	v, err := sc.Score(context.Background(), resolved(t, "settlement procedure changes"), nil, msg)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if v.Confidence() != 0.75 {
		t.Errorf("Confidence() = %v, want 0.75", v.Confidence())
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "ONLY the JSON object") {
		t.Error("retry prompt missing the stricter instruction")
	}
}

func TestScore_OutOfRangeConfidenceRetries(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"is_relevant": true, "confidence": 1.4, "reasoning": "very relevant"}`,
		`{"is_relevant": true, "confidence": 0.95, "reasoning": "very relevant"}`,
	}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "Liens", "Lien procedures.")

	v, err := sc.Score(context.Background(), resolved(t, "lien procedures"), nil, msg)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if v.Confidence() != 0.95 {
		t.Errorf("Confidence() = %v, want 0.95 from the retry", v.Confidence())
	}
	if len(gen.prompts) != 2 {
		t.Errorf("generator calls = %d, want 2", len(gen.prompts))
	}
}

func TestScore_DoubleFailureDegrades(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"no json here", "still no json"}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "Liens", "Lien procedures.")

	v, err := sc.Score(context.Background(), resolved(t, "lien procedures"), nil, msg)
	if err != nil {
		t.Fatalf("Score() error = %v, degradation must not be fatal", err)
	}
	if v.Relevant() {
		t.Error("Relevant() = true, want conservative false")
	}
	if v.Confidence() != 0.0 {
		t.Errorf("Confidence() = %v, want exactly 0.0", v.Confidence())
	}
	if v.Rationale() != verdict.DegradedRationale {
		t.Errorf("Rationale() = %q, want %q", v.Rationale(), verdict.DegradedRationale)
	}
	if !v.IsDegraded() {
		t.Error("IsDegraded() = false, want true")
	}
}

func TestScore_TransportErrorDegradesWithoutRetry(t *testing.T) {
	genErr := fmt.Errorf("generation API error 502: %w", domain.ErrGenerationUnavailable)
	gen := &scriptedGenerator{errs: []error{genErr}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "Liens", "Lien procedures.")

	v, err := sc.Score(context.Background(), resolved(t, "lien procedures"), nil, msg)
	if err != nil {
		t.Fatalf("Score() error = %v, transport failure must degrade", err)
	}
	if !v.IsDegraded() {
		t.Error("IsDegraded() = false, want true")
	}
	if len(gen.prompts) != 1 {
		t.Errorf("generator calls = %d, want 1 (no retry on transport errors)", len(gen.prompts))
	}
}

func TestScore_CancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{errs: []error{context.Canceled}}
	sc := newScorer(gen)
	msg := testMessage(t, "Pat Alvarez", "Liens", "Lien procedures.")
	cancel()

	_, err := sc.Score(ctx, resolved(t, "lien procedures"), nil, msg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
