package lexsieve

import (
	"fmt"

	"github.com/lexsieve/lexsieve/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrRunNotFound            = domain.ErrRunNotFound
	ErrMessageNotFound        = domain.ErrMessageNotFound
	ErrChannelNotFound        = domain.ErrChannelNotFound
	ErrInvalidQuestion        = domain.ErrInvalidQuestion
	ErrNoPendingClarification = domain.ErrNoPendingClarification
	ErrRunTerminal            = domain.ErrRunTerminal
	ErrInvalidTransition      = domain.ErrInvalidTransition
	ErrBudgetExhausted        = domain.ErrBudgetExhausted
	ErrRateLimited            = domain.ErrRateLimited
	ErrGenerationUnavailable  = domain.ErrGenerationUnavailable
)

// sentinelByCode maps API error codes back to sentinel errors so client
// code can use errors.Is regardless of which side produced the failure.
var sentinelByCode = map[string]error{
	"not_found":                ErrNotFound,
	"run_not_found":            ErrRunNotFound,
	"message_not_found":        ErrMessageNotFound,
	"channel_not_found":        ErrChannelNotFound,
	"invalid_question":         ErrInvalidQuestion,
	"no_pending_clarification": ErrNoPendingClarification,
	"run_finished":             ErrRunTerminal,
	"invalid_transition":       ErrInvalidTransition,
	"budget_exhausted":         ErrBudgetExhausted,
	"rate_limited":             ErrRateLimited,
	"generation_unavailable":   ErrGenerationUnavailable,
}

// APIError is a non-2xx response from the LexSieve API.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Code is the machine-readable error code from the response body.
	Code string
	// Message is the human-readable error message from the response body.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lexsieve: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the error code to its sentinel, when one exists.
func (e *APIError) Unwrap() error {
	return sentinelByCode[e.Code]
}
