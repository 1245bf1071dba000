// Package llmjson extracts and validates JSON objects from generation
// service output. The service gives no format guarantees: the requested
// object may be wrapped in commentary, code fences, or prose. This package
// is the single boundary where that raw text becomes typed data; nothing
// downstream re-parses model output.
package llmjson

import (
	"encoding/json"
	"strings"
)

// Extract returns the first top-level brace-delimited span of raw that is
// well-formed JSON. Braces inside string literals and escape sequences do
// not affect depth counting.
func Extract(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	for start >= 0 {
		if end := matchBrace(raw, start); end > start {
			span := raw[start : end+1]
			if json.Valid([]byte(span)) {
				return span, nil
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	if strings.IndexByte(raw, '{') < 0 {
		return "", &Error{Reason: "no JSON object in output", Raw: raw}
	}
	return "", &Error{Reason: "no well-formed JSON object in output", Raw: raw}
}

// matchBrace returns the index of the brace closing the object opened at
// start, or -1 when the object never closes.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
