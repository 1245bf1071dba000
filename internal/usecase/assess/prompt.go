package assess

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lexsieve/lexsieve/internal/domain/message"
)

// strictRetrySuffix is appended when the first reply could not be parsed.
const strictRetrySuffix = "\n\nYour previous reply could not be parsed. Respond with ONLY the JSON object. No code fences, no commentary."

// assessPrompt asks the model to synthesize one expertise evaluation from
// the messages an identity search judged relevant.
func assessPrompt(personName string, msgs []message.Message, bodyLimit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize an expertise assessment of %s from these archived listserv messages.\n\n", personName)
	b.WriteString("Every message below was judged relevant to this person, either written by them or discussing them.\n\nMESSAGES:\n")
	for i, m := range msgs {
		fmt.Fprintf(&b, "%d. From: %s | Subject: %s\n%s\n\n",
			i+1, m.Sender(), m.Subject(), truncate(m.Body(), bodyLimit))
	}
	fmt.Fprintf(&b, `Evaluate what the messages demonstrate about %s: depth of knowledge, practical experience, how often peers cite or defer to them, and the range of topics they engage with.

Score 0-100 (0 = no demonstrated expertise, 100 = clearly a leading authority).

Respond in JSON format:
{
  "score": 0-100,
  "summary": "2-3 sentence evaluation",
  "topics": ["notable topic", "notable topic"]
}`, personName)
	return b.String()
}

// truncate cuts s at the limit without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}
