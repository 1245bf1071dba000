package clarify

import "fmt"

// strictRetrySuffix is appended when the first reply could not be parsed.
const strictRetrySuffix = "\n\nYour previous reply could not be parsed. Respond with ONLY the JSON object. No code fences, no commentary."

// gatePrompt asks the model to judge whether the question can drive a
// search as-is. Vague means materially different searches would satisfy
// the question, not merely that optional detail is missing.
func gatePrompt(questionText string) string {
	return fmt.Sprintf(`Analyze this legal research question and determine whether it has enough information to search a legal listserv archive effectively.

Question: %q

A question is VAGUE only if:
1. Multiple interpretations exist that would lead to VERY DIFFERENT searches
2. Key information is missing that would significantly change what to search for

A question is SPECIFIC if:
1. What to search for can be determined confidently
2. The intent is unambiguous, or the remaining ambiguity would not change the search

CRITICAL DISTINCTIONS TO CHECK:
- Person name WITHOUT context is VAGUE (could mean BY them or ABOUT them)
  - "Chris Johnson" is VAGUE
  - "articles BY Chris Johnson" is SPECIFIC
  - "articles MENTIONING Chris Johnson" is SPECIFIC
- Topic without WHAT aspect is often VAGUE
  - "recent changes" is VAGUE (changes to what?)
  - "recent changes to settlement procedures" is SPECIFIC

When VAGUE, craft one clarifying question that:
1. Names the ambiguity or missing information
2. Offers 2-3 concrete framings to choose from
3. Never asks about details that would not change the search

Return JSON:
{
  "is_vague": true/false,
  "follow_up_question": "clarifying question" OR null
}`, questionText)
}
