package budget

// Budget tracks the daily generation API budget state. A zero limit means
// the corresponding dimension is uncapped.
type Budget struct {
	callsLimit      int
	callsRemaining  int
	tokensLimit     int
	tokensRemaining int
	resetsAt        int64 // unix millis, converted to ISO 8601 at transport layer
}

// New creates a Budget snapshot from limits and consumed amounts.
func New(callsLimit, callsUsed, tokensLimit, tokensUsed int, resetsAt int64) Budget {
	b := Budget{
		callsLimit:  callsLimit,
		tokensLimit: tokensLimit,
		resetsAt:    resetsAt,
	}
	if callsLimit > 0 {
		b.callsRemaining = max(callsLimit-callsUsed, 0)
	}
	if tokensLimit > 0 {
		b.tokensRemaining = max(tokensLimit-tokensUsed, 0)
	}
	return b
}

// CallsLimit returns the daily call cap (0 = uncapped).
func (b Budget) CallsLimit() int { return b.callsLimit }

// CallsRemaining returns calls left today.
func (b Budget) CallsRemaining() int { return b.callsRemaining }

// TokensLimit returns the daily token cap (0 = uncapped).
func (b Budget) TokensLimit() int { return b.tokensLimit }

// TokensRemaining returns tokens left today.
func (b Budget) TokensRemaining() int { return b.tokensRemaining }

// IsExhausted reports whether any capped dimension is spent.
func (b Budget) IsExhausted() bool {
	if b.callsLimit > 0 && b.callsRemaining == 0 {
		return true
	}
	if b.tokensLimit > 0 && b.tokensRemaining == 0 {
		return true
	}
	return false
}

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
