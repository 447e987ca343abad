package canonical

import (
	"strings"

	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// RuleVersion is stamped on every Result. Bump it whenever a default rule
// changes so stored results can be told apart from current ones.
const RuleVersion = "canon-v1"

// Scope selects which segments a BaseRule inspects.
type Scope string

const (
	// AnySegment fires when any segment equals the rule term.
	AnySegment Scope = "any"
	// FirstSegment fires only when the first segment equals the term.
	FirstSegment Scope = "first"
)

// BaseRule selects a fixed base identity for an umbrella term.
type BaseRule struct {
	Tag   string `yaml:"tag"`
	Scope Scope  `yaml:"scope"`
	Term  string `yaml:"term"`
	Base  string `yaml:"base"`
}

// Match returns the index of the segment that fired the rule.
func (r BaseRule) Match(segments []string) (int, bool) {
	term := normalize.Lower(strings.TrimSpace(r.Term))
	switch r.Scope {
	case FirstSegment:
		if len(segments) > 0 && segments[0] == term {
			return 0, true
		}
	default:
		for i, seg := range segments {
			if seg == term {
				return i, true
			}
		}
	}
	return -1, false
}

// SubtypeRule refines a base into a specific identity when a keyword
// appears as a whole-word run inside one of the remaining segments.
type SubtypeRule struct {
	Tag      string `yaml:"tag"`
	Base     string `yaml:"base"`
	Keyword  string `yaml:"keyword"`
	Specific string `yaml:"specific"`
}

// Match reports whether the keyword occurs in any of the segments.
func (r SubtypeRule) Match(base string, segments []string) bool {
	if base != r.Base {
		return false
	}
	kw := strings.Fields(normalize.Lower(r.Keyword))
	if len(kw) == 0 {
		return false
	}
	for _, seg := range segments {
		if containsRun(strings.Fields(seg), kw) {
			return true
		}
	}
	return false
}

// Rules is the complete, ordered rule set of a Canonicalizer. Slices are
// evaluated front to back and the first firing rule wins, so precedence
// is the slice order.
type Rules struct {
	Prefixes    []string      `yaml:"prefixes"`
	Containers  []string      `yaml:"containers"`
	StateWords  []string      `yaml:"state_words"`
	PrepPhrases []string      `yaml:"prep_phrases"`
	Bases       []BaseRule    `yaml:"bases"`
	Subtypes    []SubtypeRule `yaml:"subtypes"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	state := make([]string, 0, len(normalize.StateWords)+len(normalize.FormWords))
	state = append(state, normalize.StateWords...)
	state = append(state, normalize.FormWords...)

	return Rules{
		Prefixes: []string{"alcoholic beverage", "alcoholic beverages", "beverages"},
		Containers: []string{
			"spices", "nuts", "seeds", "cereals", "sweeteners",
			"fish", "crustaceans", "mollusks",
		},
		StateWords:  state,
		PrepPhrases: normalize.PrepPhrases,
		Bases: []BaseRule{
			{Tag: "umbrella:beer", Scope: AnySegment, Term: "beer", Base: "beer"},
			{Tag: "umbrella:wine", Scope: AnySegment, Term: "wine", Base: "wine"},
			{Tag: "umbrella:distilled", Scope: FirstSegment, Term: "distilled", Base: "distilled spirits"},
			{Tag: "umbrella:liqueur", Scope: FirstSegment, Term: "liqueur", Base: "liqueur"},
		},
		// Light outranks low carb: "beer, light, low carb" is a light beer.
		Subtypes: []SubtypeRule{
			{Tag: "beer:light", Base: "beer", Keyword: "light", Specific: "light beer"},
			{Tag: "beer:low-carb", Base: "beer", Keyword: "low carb", Specific: "low carb beer"},
			{Tag: "beer:higher-alcohol", Base: "beer", Keyword: "higher alcohol", Specific: "higher alcohol beer"},
			{Tag: "beer:non-alcoholic", Base: "beer", Keyword: "non-alcoholic", Specific: "non-alcoholic beer"},
			{Tag: "beer:regular", Base: "beer", Keyword: "regular", Specific: "regular beer"},
			{Tag: "wine:cooking", Base: "wine", Keyword: "cooking", Specific: "cooking wine"},
			{Tag: "wine:dessert", Base: "wine", Keyword: "dessert", Specific: "dessert wine"},
			{Tag: "wine:red", Base: "wine", Keyword: "red", Specific: "red wine"},
			{Tag: "wine:white", Base: "wine", Keyword: "white", Specific: "white wine"},
			{Tag: "wine:rose", Base: "wine", Keyword: "rose", Specific: "rose wine"},
			{Tag: "wine:light", Base: "wine", Keyword: "light", Specific: "light wine"},
		},
	}
}

func containsRun(words, run []string) bool {
	for i := 0; i+len(run) <= len(words); i++ {
		match := true
		for j := range run {
			if words[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
