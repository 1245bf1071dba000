package translate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain/spec"
)

// strictRetrySuffix is appended when the first reply could not be parsed.
const strictRetrySuffix = "\n\nYour previous reply could not be parsed. Respond with ONLY the JSON object. No code fences, no commentary."

// translatePrompt asks the model to turn the resolved question into search
// parameters. The recent-window cutoff is computed here so the model copies
// a concrete date instead of doing calendar arithmetic.
func translatePrompt(questionText string, now time.Time, channels map[string]string, recentMonths int) string {
	today := now.UTC().Format(spec.DateFormat)
	recentFrom := now.UTC().AddDate(0, -recentMonths, 0).Format(spec.DateFormat)

	return fmt.Sprintf(`The user wants to search an archived legal listserv for workers' compensation practitioners.

TODAY'S DATE: %s

QUESTION: %q

Your task: determine the BEST search parameters to find relevant messages.

Available search fields:
1. keyword - Simple keyword search (searches subject + body)
2. keywords_all - Must contain ALL these keywords (comma-separated: "word1, word2, word3")
3. keywords_any - Must contain at least ONE of these (comma-separated: "term1, term2, term3")
4. keywords_exclude - Must NOT contain these keywords (comma-separated)
5. keywords_phrase - Exact phrase match (e.g. "permanent disability rating")
6. listserv - Which channel: "all" or one of:
%s7. author_first_name / author_last_name - Named witness or expert (e.g. a QME doctor)
8. posted_by - Who SENT the message (full display name)
9. attachment_filter - "all", "with_attachments", "without_attachments"
10. date_from / date_to - Date bounds (YYYY-MM-DD)
11. search_in - "subject_and_body" or "subject_only"

PERSON RULES:
- "messages BY X" / "posts from X" means X sent them: use posted_by, NOT keywords
- "QME Dr. X" / "expert X" means X is a discussed expert: use author_first_name + author_last_name
- "mentioning X" / "about X" means X appears in the text: use keywords_any

CRITICAL FORMATTING RULES - MUST FOLLOW:
- For keywords_all, keywords_any, keywords_exclude: ALWAYS USE COMMAS to separate each term
- CORRECT: "expedited, hearing, IMR, appeal"
- WRONG: "expedited hearing IMR appeal" (no spaces without commas)
- WRONG: "expedited vs regular hearing" (no connecting words like "vs", "or", "and")
- Each term is a single word or short phrase; multi-word terms stay as one comma item

Guidelines:
- Prefer keywords_any for synonyms and related terms (wider recall); use keywords_all
  only when the question explicitly requires concepts to appear together
- Use keywords_phrase for legal terms of art that should appear exactly
- Think about legal synonyms and abbreviations (PD = permanent disability, TD = temporary disability, IMR = independent medical review, UR = utilization review)
- DO NOT use date filters unless the question mentions a time period
- "recent" / "latest" means date_from = %s (%d months before today), date_to left null
- Pick a specific listserv only when the question clearly targets one side of the bar

Respond in JSON format:
{
  "reasoning": "Brief explanation of search strategy",
  "parameters": {
    "keyword": "string or null",
    "keywords_all": "comma-separated terms or null",
    "keywords_any": "comma-separated terms or null",
    "keywords_exclude": "comma-separated terms or null",
    "keywords_phrase": "exact phrase or null",
    "listserv": "all or a channel id",
    "author_first_name": "string or null",
    "author_last_name": "string or null",
    "posted_by": "full name or null",
    "attachment_filter": "all/with_attachments/without_attachments",
    "date_from": "YYYY-MM-DD or null",
    "date_to": "YYYY-MM-DD or null",
    "search_in": "subject_and_body or subject_only"
  }
}

REMEMBER: always use commas between different keywords in keywords_all, keywords_any, and keywords_exclude.`,
		today, questionText, channelLines(channels), recentFrom, recentMonths)
}

// channelLines renders the registered channels sorted by id so identical
// registries always produce identical prompts.
func channelLines(channels map[string]string) string {
	ids := make([]string, 0, len(channels))
	for id := range channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "   - %s: %s\n", id, channels[id])
	}
	return b.String()
}
