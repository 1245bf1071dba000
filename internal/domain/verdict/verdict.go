// Package verdict holds the relevance verdict for one (question, message)
// pair. Confidence bands: 0.9 and above directly answers the question,
// 0.7-0.89 substantially helpful, 0.5-0.69 related context, below 0.5 not
// sufficient to count as relevant.
package verdict

import "fmt"

// Fixed confidences for identity-mode and degraded verdicts.
const (
	// AuthorMatchConfidence is assigned when the message is authored by the
	// target person.
	AuthorMatchConfidence = 0.95
	// MentionMatchConfidence is assigned when the message merely references
	// the target person.
	MentionMatchConfidence = 0.85
	// DegradedConfidence is assigned when evaluation failed and the verdict
	// was conservatively downgraded.
	DegradedConfidence = 0.0
)

// DegradedRationale is the fixed rationale for failure-degraded verdicts.
const DegradedRationale = "evaluation failed"

// Verdict is a relevance judgment (immutable value object).
type Verdict struct {
	relevant   bool
	confidence float64
	rationale  string
	degraded   bool
}

// New validates and creates a Verdict.
func New(relevant bool, confidence float64, rationale string) (Verdict, error) {
	if confidence < 0 || confidence > 1 {
		return Verdict{}, fmt.Errorf("confidence must be between 0 and 1, got %v", confidence)
	}
	return Verdict{relevant: relevant, confidence: confidence, rationale: rationale}, nil
}

// Degraded creates the conservative not-relevant verdict used when scoring
// repeatedly failed. It can never inflate a result set.
func Degraded() Verdict {
	return Verdict{
		relevant:   false,
		confidence: DegradedConfidence,
		rationale:  DegradedRationale,
		degraded:   true,
	}
}

// Reconstruct creates a Verdict without validation (storage hydration).
func Reconstruct(relevant bool, confidence float64, rationale string, degraded bool) Verdict {
	return Verdict{relevant: relevant, confidence: confidence, rationale: rationale, degraded: degraded}
}

// Relevant reports whether the message answers the resolved question.
func (v Verdict) Relevant() bool { return v.relevant }

// Confidence returns the confidence in [0, 1].
func (v Verdict) Confidence() float64 { return v.confidence }

// Rationale returns the free-text justification.
func (v Verdict) Rationale() string { return v.rationale }

// IsDegraded reports whether the verdict is a failure downgrade rather than
// a real judgment.
func (v Verdict) IsDegraded() bool { return v.degraded }
