package run

// Status is the lifecycle state of a search run.
type Status string

// Run status constants.
const (
	// StatusPending covers creation through clarification; a run waiting on a
	// follow-up answer stays pending.
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	// StatusCompleted and StatusFailed are terminal; no resurrection.
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsValid checks if the status is one of the supported values.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusRunning || s == StatusCompleted || s == StatusFailed
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the edge s -> to is allowed.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
