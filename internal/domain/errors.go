package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRunNotFound signals a missing search run.
	ErrRunNotFound = errors.New("search run not found")
	// ErrMessageNotFound signals a missing archived message.
	ErrMessageNotFound = errors.New("message not found")
	// ErrChannelNotFound signals an unregistered listserv channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrInvalidQuestion signals an empty or unusable research question.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrTranslationFailed signals that the question could not be turned into a
	// search specification after retry exhaustion.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrRetrievalFailed signals a failure of the archive retrieval collaborator.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationUnavailable signals a transport-level generation service failure.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	// ErrGenerationRejected signals that the generation service rejected the request.
	ErrGenerationRejected = errors.New("generation request rejected")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrBudgetExhausted signals an exhausted daily generation budget.
	ErrBudgetExhausted = errors.New("generation budget exhausted")

	// ErrNoPendingClarification signals an answer for a run that is not waiting on one.
	ErrNoPendingClarification = errors.New("no pending clarification")
	// ErrRunTerminal signals an operation on a completed or failed run.
	ErrRunTerminal = errors.New("search run already finished")
	// ErrInvalidTransition signals a disallowed run status transition.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidTransitionError wraps ErrInvalidTransition with the attempted edge.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NewInvalidTransition creates an invalid transition error.
func NewInvalidTransition(from, to string) error {
	return &InvalidTransitionError{From: from, To: to}
}
