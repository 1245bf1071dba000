package question

import (
	"fmt"
	"strings"
)

// Exchange holds one clarification round: the original question, an optional
// follow-up question, and an optional user answer. It lives for a single
// search attempt and is folded into a Resolved question before being dropped.
type Exchange struct {
	original string
	followUp string
	answer   string
}

// NewExchange starts an exchange from the user's original question.
func NewExchange(original string) (Exchange, error) {
	original = strings.TrimSpace(original)
	if original == "" {
		return Exchange{}, fmt.Errorf("original question is required")
	}
	return Exchange{original: original}, nil
}

// ReconstructExchange hydrates an exchange from storage without validation.
func ReconstructExchange(original, followUp, answer string) Exchange {
	return Exchange{original: original, followUp: followUp, answer: answer}
}

// Ask records the single follow-up question. At most one per exchange.
func (e *Exchange) Ask(followUp string) error {
	followUp = strings.TrimSpace(followUp)
	if followUp == "" {
		return fmt.Errorf("follow-up question is required")
	}
	if e.followUp != "" {
		return fmt.Errorf("follow-up already asked")
	}
	e.followUp = followUp
	return nil
}

// Answer records the user's answer to the pending follow-up.
func (e *Exchange) Answer(answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("answer is required")
	}
	if e.followUp == "" {
		return fmt.Errorf("no follow-up to answer")
	}
	if e.answer != "" {
		return fmt.Errorf("follow-up already answered")
	}
	e.answer = answer
	return nil
}

// Resolve folds the exchange into a Resolved question. An exchange with no
// follow-up resolves to the original text unchanged.
func (e *Exchange) Resolve() (Resolved, error) {
	if e.followUp == "" || e.answer == "" {
		return NewResolved(e.original)
	}
	return Fold(e.original, e.answer)
}

// Original returns the user's original question.
func (e *Exchange) Original() string { return e.original }

// FollowUp returns the pending follow-up question, if any.
func (e *Exchange) FollowUp() string { return e.followUp }

// AnswerText returns the user's answer to the follow-up, if any.
func (e *Exchange) AnswerText() string { return e.answer }

// Answered reports whether the follow-up has been answered.
func (e *Exchange) Answered() bool { return e.answer != "" }
