package question

import (
	"fmt"
	"strings"
)

// MaxLength is the maximum allowed question length in characters.
const MaxLength = 2000

// foldSeparator joins an original question with its clarifying answer.
const foldSeparator = ". Specifically: "

// Resolved is the single natural-language statement of intent for a search
// attempt. Both the translator and the scorer treat it as ground truth.
type Resolved struct {
	text   string
	folded bool
}

// NewResolved validates and creates a Resolved question.
func NewResolved(text string) (Resolved, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Resolved{}, fmt.Errorf("question text is required")
	}
	if len(text) > MaxLength {
		return Resolved{}, fmt.Errorf("question too long (max %d chars)", MaxLength)
	}
	return Resolved{text: text}, nil
}

// Fold combines an original question with a clarifying answer into a new
// Resolved question. The combined text is treated as brand new intent.
func Fold(original, answer string) (Resolved, error) {
	original = strings.TrimSpace(original)
	answer = strings.TrimSpace(answer)
	if original == "" {
		return Resolved{}, fmt.Errorf("original question is required")
	}
	if answer == "" {
		return Resolved{}, fmt.Errorf("clarifying answer is required")
	}
	combined := original + foldSeparator + answer
	if len(combined) > MaxLength {
		return Resolved{}, fmt.Errorf("folded question too long (max %d chars)", MaxLength)
	}
	return Resolved{text: combined, folded: true}, nil
}

// Reconstruct creates a Resolved question without validation (storage hydration).
func Reconstruct(text string, folded bool) Resolved {
	return Resolved{text: text, folded: folded}
}

// Text returns the question text.
func (r Resolved) Text() string { return r.text }

// Folded reports whether the question was synthesized from a clarification answer.
func (r Resolved) Folded() bool { return r.folded }

// IsZero reports whether the question is unset.
func (r Resolved) IsZero() bool { return r.text == "" }
