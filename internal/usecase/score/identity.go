package score

import (
	"sort"
	"strings"

	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

// identityVerdict computes the deterministic verdict for an identity-filter
// question. Authorship outranks a mere mention; neither means not relevant.
func identityVerdict(target spec.Identity, msg message.Message) verdict.Verdict {
	name := target.Name
	switch {
	case sameName(name, msg.Sender()):
		v, _ := verdict.New(true, verdict.AuthorMatchConfidence, "message sent by "+name)
		return v
	case referencedIn(name, msg.Subject()) || referencedIn(name, msg.Body()):
		v, _ := verdict.New(true, verdict.MentionMatchConfidence, "message references "+name)
		return v
	default:
		v, _ := verdict.New(false, 0, "message does not involve "+name)
		return v
	}
}

// sameName reports whether two person names denote the same person:
// case-insensitive, separator punctuation ignored, first/last order free.
func sameName(a, b string) bool {
	ka, kb := nameKey(a), nameKey(b)
	return ka != "" && ka == kb
}

func nameKey(name string) string {
	words := nameWords(name)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// referencedIn reports whether the name appears in the text, in given or
// swapped word order for two-word names.
func referencedIn(name, text string) bool {
	words := nameWords(name)
	if len(words) == 0 {
		return false
	}
	text = strings.ToLower(text)
	if strings.Contains(text, strings.Join(words, " ")) {
		return true
	}
	if len(words) == 2 {
		return strings.Contains(text, words[1]+" "+words[0])
	}
	return false
}

// nameWords lower-cases a display name and strips separator punctuation,
// so "Johnson, Chris" yields the same words as "chris johnson".
func nameWords(name string) []string {
	fields := strings.Fields(strings.ToLower(name))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.Trim(f, ",."); f != "" {
			words = append(words, f)
		}
	}
	return words
}
