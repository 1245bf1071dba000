package llmjson

// Error reports a failure to extract or validate a structured object from
// generation output. Raw carries the complete model text for diagnostics;
// it is logged, never shown to users.
type Error struct {
	Reason string
	Raw    string
}

func (e *Error) Error() string { return "malformed model output: " + e.Reason }
