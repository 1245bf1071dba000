package score

import (
	"fmt"
	"unicode/utf8"

	"github.com/lexsieve/lexsieve/internal/domain/message"
)

// strictRetrySuffix is appended when the first reply could not be parsed.
const strictRetrySuffix = "\n\nYour previous reply could not be parsed. Respond with ONLY the JSON object. No code fences, no commentary."

// scorePrompt asks the model to judge one message against the resolved
// question. The prompt carries the question, never the retrieval keywords:
// broad recall-oriented retrieval must not inflate relevance.
func scorePrompt(questionText string, msg message.Message, bodyLimit int) string {
	return fmt.Sprintf(`Analyze if this listserv message is relevant to the research question.

QUESTION: %q

MESSAGE:
From: %s
Subject: %s
Body: %s

Judge along five dimensions:
1. Topical match - does it discuss the subject of the question?
2. Practical guidance - does it offer hands-on experience or advice?
3. Cited authority - does it reference statutes, cases, or regulations?
4. Procedural specificity - does it describe concrete steps or requirements?
5. Direct responsiveness - would it help someone asking exactly this question?

Collapse your judgment into a single confidence score:
- 0.9-1.0: directly answers the question
- 0.7-0.89: substantially helpful
- 0.5-0.69: related context only
- below 0.5: not sufficient to count as relevant

A message is relevant when it is genuinely useful for the question, not when
it merely repeats its words.

Respond in JSON format:
{
  "is_relevant": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation (1-2 sentences)"
}`, questionText, msg.Sender(), msg.Subject(), truncate(msg.Body(), bodyLimit))
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
