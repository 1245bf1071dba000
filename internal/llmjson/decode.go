package llmjson

import "encoding/json"

// Decode extracts the first well-formed JSON object from raw, validates it
// against schema, and unmarshals it into v. Any failure is an *Error
// carrying the raw text.
func Decode(raw string, schema Schema, v any) error {
	span, err := Extract(raw)
	if err != nil {
		return err
	}
	var obj map[string]any
	if uerr := json.Unmarshal([]byte(span), &obj); uerr != nil {
		return &Error{Reason: "not a JSON object: " + uerr.Error(), Raw: raw}
	}
	if verr := schema.Validate(obj); verr != nil {
		return &Error{Reason: verr.Error(), Raw: raw}
	}
	if uerr := json.Unmarshal([]byte(span), v); uerr != nil {
		return &Error{Reason: "decode: " + uerr.Error(), Raw: raw}
	}
	return nil
}
