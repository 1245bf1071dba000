package run

import (
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

// RankedResult is one scored candidate in retrieval order. Position is the
// collaborator's reported position, which fixes the final ranking regardless
// of scoring completion order.
type RankedResult struct {
	position int
	msg      message.Message
	verdict  verdict.Verdict
}

// NewRankedResult creates a ranked result.
func NewRankedResult(position int, msg message.Message, v verdict.Verdict) RankedResult {
	return RankedResult{position: position, msg: msg, verdict: v}
}

// Position returns the retrieval position (1-based).
func (r *RankedResult) Position() int { return r.position }

// Message returns the candidate message.
func (r *RankedResult) Message() message.Message { return r.msg }

// Verdict returns the relevance verdict.
func (r *RankedResult) Verdict() verdict.Verdict { return r.verdict }
