package spec

import (
	"regexp"
	"strings"
)

// Identity is the person a pure identity-filter question is about. When a
// question's entire intent is "messages from/about person P", relevance
// reduces to matching P against each message instead of judging content.
type Identity struct {
	Name      string
	ViaSender bool
}

// identityQuestion matches questions whose whole intent is a person filter,
// e.g. "messages from Chris Johnson" or "find all posts about Jane Smith".
var identityQuestion = regexp.MustCompile(
	`(?i)^(?:find\s+|show\s+|get\s+|list\s+)?(?:me\s+)?(?:all\s+|any\s+)?` +
		`(?:messages?|posts?|emails?|articles?|threads?)\s+` +
		`(?:from|by|about|mentioning)\s+([\pL'.-]+(?:\s+[\pL'.-]+){0,3})[.?!]?$`,
)

// IdentityTarget inspects the resolved question together with this
// specification and reports the identity target, if the question is a pure
// identity-filter question. A specification whose only filters name a sender
// is always an identity search; otherwise the question text must carry the
// from/by/about framing and the content filters must not reach beyond the
// person's name.
func (s *Spec) IdentityTarget(questionText string) (Identity, bool) {
	if s.HasSenderIdentity() && !s.HasContentFilters() {
		return Identity{Name: s.SenderName(), ViaSender: true}, true
	}

	m := identityQuestion.FindStringSubmatch(strings.TrimSpace(questionText))
	if m == nil {
		return Identity{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" || !s.contentLimitedTo(name) {
		return Identity{}, false
	}
	if s.HasSenderIdentity() {
		return Identity{Name: s.SenderName(), ViaSender: true}, true
	}
	return Identity{Name: name}, true
}

// contentLimitedTo reports whether every content filter term is just a word
// of the given name (so the filters retrieve the person, not a topic).
func (s *Spec) contentLimitedTo(name string) bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(name)) {
		words[w] = true
	}
	var terms []string
	if s.keyword != "" {
		terms = append(terms, strings.Fields(s.keyword)...)
	}
	if s.phrase != "" {
		terms = append(terms, strings.Fields(s.phrase)...)
	}
	for _, t := range s.keywordsAll {
		terms = append(terms, strings.Fields(t)...)
	}
	for _, t := range s.keywordsAny {
		terms = append(terms, strings.Fields(t)...)
	}
	for _, t := range terms {
		if !words[strings.ToLower(t)] {
			return false
		}
	}
	return true
}
