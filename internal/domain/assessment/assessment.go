package assessment

import "fmt"

// MinRelevantMessages is the minimum number of relevant messages an identity
// search needs before an assessment is synthesized.
const MinRelevantMessages = 3

// Assessment is a synthesized evaluation of a person's demonstrated
// expertise, built from the relevant messages of an identity search.
type Assessment struct {
	score   int
	summary string
	topics  []string
}

// New validates and creates an Assessment. Score is 0-100.
func New(score int, summary string, topics []string) (Assessment, error) {
	if score < 0 || score > 100 {
		return Assessment{}, fmt.Errorf("score must be between 0 and 100, got %d", score)
	}
	return Assessment{score: score, summary: summary, topics: topics}, nil
}

// Reconstruct creates an Assessment without validation (storage hydration).
func Reconstruct(score int, summary string, topics []string) Assessment {
	return Assessment{score: score, summary: summary, topics: topics}
}

// Score returns the 0-100 expertise score.
func (a *Assessment) Score() int { return a.score }

// Summary returns the synthesized evaluation text.
func (a *Assessment) Summary() string { return a.summary }

// Topics returns the notable topics the person engaged with.
func (a *Assessment) Topics() []string { return a.topics }
