package normalize

import "strings"

// PhraseMatcher recognizes multi-word phrases by greedy longest match over
// a sequence of already-normalized word keys.
type PhraseMatcher struct {
	dict   map[string]struct{}
	maxLen int
}

// NewPhraseMatcher creates a matcher for the given phrases. Phrases are
// lowercased and their whitespace collapsed.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	dict := make(map[string]struct{}, len(phrases))
	maxLen := 1
	for _, p := range phrases {
		words := strings.Fields(Lower(p))
		if len(words) == 0 {
			continue
		}
		dict[strings.Join(words, " ")] = struct{}{}
		if len(words) > maxLen {
			maxLen = len(words)
		}
	}
	return &PhraseMatcher{dict: dict, maxLen: maxLen}
}

// MatchAt returns how many keys, starting at keys[i], form the longest known
// phrase. Zero means no phrase starts at i.
func (p *PhraseMatcher) MatchAt(keys []string, i int) int {
	if i < 0 || i >= len(keys) {
		return 0
	}
	longest := p.maxLen
	if remaining := len(keys) - i; longest > remaining {
		longest = remaining
	}
	for n := longest; n >= 1; n-- {
		if _, ok := p.dict[strings.Join(keys[i:i+n], " ")]; ok {
			return n
		}
	}
	return 0
}

// Len reports the number of phrases known to the matcher.
func (p *PhraseMatcher) Len() int {
	return len(p.dict)
}
