// Package canonical resolves raw food descriptions to a base identity and a
// specific subtype with an ordered, deterministic rule set.
package canonical

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// Unknown is the base slug of a description with no usable segment.
const Unknown = "unknown"

// Level distinguishes the two resolution levels of a Result.
type Level string

const (
	LevelBase     Level = "base"
	LevelSpecific Level = "specific"
)

// Result is the canonical form of one description.
type Result struct {
	BaseName      string
	BaseSlug      string
	SpecificName  string
	SpecificSlug  string
	RemovedTokens []string
	// Fired lists the tags of the rules that shaped this result, in order.
	Fired       []string
	RuleVersion string
}

// Canonicalizer applies a Rules set. It holds no mutable state and is safe
// for concurrent use.
type Canonicalizer struct {
	rules      Rules
	prefixes   map[string]struct{}
	containers map[string]struct{}
	state      map[string]struct{}
	phrases    *normalize.PhraseMatcher
}

var (
	parenSpan  = regexp.MustCompile(`\([^()]*\)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// New builds a Canonicalizer from rules.
func New(rules Rules) *Canonicalizer {
	return &Canonicalizer{
		rules:      rules,
		prefixes:   phraseSet(rules.Prefixes),
		containers: phraseSet(rules.Containers),
		state:      phraseSet(rules.StateWords),
		phrases:    normalize.NewPhraseMatcher(rules.PrepPhrases),
	}
}

var defaultCanonicalizer = New(DefaultRules())

// Canonicalize resolves description with the default rules.
func Canonicalize(description string) Result {
	return defaultCanonicalizer.Canonicalize(description)
}

// Canonicalize resolves description. It never fails: degenerate input
// resolves to the Unknown sentinel.
func (c *Canonicalizer) Canonicalize(description string) Result {
	res := Result{RuleVersion: RuleVersion}

	// 1. whitespace and parentheticals
	text := collapse(normalize.Fold(description))
	text, asides := stripParentheticals(text)
	res.RemovedTokens = append(res.RemovedTokens, asides...)

	raw := strings.Split(text, ",")
	for i := range raw {
		raw[i] = collapse(raw[i])
	}

	// 2. umbrella prefix, only when something follows it
	if len(raw) > 1 {
		if _, ok := c.prefixes[normalize.Lower(raw[0])]; ok {
			res.RemovedTokens = append(res.RemovedTokens, normalize.Lower(raw[0]))
			res.Fired = append(res.Fired, "prefix")
			raw = raw[1:]
		}
	}

	// 3-5. brands, state tokens, then segments
	detectBrands := hasLower(text)
	var segments []string
	for _, seg := range raw {
		words := strings.Fields(seg)
		if detectBrands {
			words = c.stripBrands(words, &res)
		}
		words = c.stripState(words, &res)
		if len(words) > 0 {
			segments = append(segments, strings.Join(words, " "))
		}
	}

	// 6. base identity
	base, baseIdx, container := "", -1, false
	for _, rule := range c.rules.Bases {
		if idx, ok := rule.Match(segments); ok {
			base, baseIdx = rule.Base, idx
			res.Fired = append(res.Fired, rule.Tag)
			break
		}
	}
	if base == "" && len(segments) > 0 {
		// 8. container nouns hand the identity to the next segment
		if _, ok := c.containers[segments[0]]; ok && len(segments) > 1 {
			res.RemovedTokens = append(res.RemovedTokens, segments[0])
			res.Fired = append(res.Fired, "container")
			base, baseIdx, container = segments[1], 1, true
		} else {
			base, baseIdx = segments[0], 0
		}
	}

	res.BaseName = base
	res.BaseSlug = normalize.Slugify(base)
	if res.BaseSlug == "" {
		res.BaseName, res.BaseSlug = Unknown, Unknown
		res.SpecificName, res.SpecificSlug = Unknown, Unknown
		return res
	}

	// 7. specific identity
	specific := base
	rest := remaining(segments, baseIdx, container)
	for _, rule := range c.rules.Subtypes {
		if rule.Match(base, rest) {
			specific = rule.Specific
			res.Fired = append(res.Fired, rule.Tag)
			break
		}
	}
	if specific == base && container && baseIdx+1 < len(segments) {
		if q := segments[baseIdx+1]; !strings.Contains(q, " ") {
			specific = q + " " + base
			res.Fired = append(res.Fired, "container:qualifier")
		}
	}

	// 9. slugs; a specific that does not refine the base is discarded
	res.SpecificName = specific
	res.SpecificSlug = normalize.Slugify(specific)
	if !Refines(res.SpecificSlug, res.BaseSlug) {
		res.SpecificName, res.SpecificSlug = res.BaseName, res.BaseSlug
	}
	return res
}

// Refines reports whether specific equals base or contains every token of
// base.
func Refines(specific, base string) bool {
	if specific == base {
		return true
	}
	have := make(map[string]struct{})
	for _, tok := range strings.Split(specific, "-") {
		have[tok] = struct{}{}
	}
	for _, tok := range strings.Split(base, "-") {
		if _, ok := have[tok]; !ok {
			return false
		}
	}
	return specific != ""
}

// stripBrands removes runs of all-uppercase words with at least two letters.
func (c *Canonicalizer) stripBrands(words []string, res *Result) []string {
	kept := words[:0:0]
	var run []string
	flush := func() {
		if len(run) > 0 {
			res.RemovedTokens = append(res.RemovedTokens, normalize.Lower(strings.Join(run, " ")))
			run = nil
		}
	}
	for _, w := range words {
		if isBrandWord(w) {
			run = append(run, w)
			continue
		}
		flush()
		kept = append(kept, w)
	}
	flush()
	if len(kept) < len(words) && !containsTag(res.Fired, "brand") {
		res.Fired = append(res.Fired, "brand")
	}
	return kept
}

// stripState lowercases words and drops prep phrases and state tokens by
// exact word match. "dry-roasted" is one word and never matches "dried".
func (c *Canonicalizer) stripState(words []string, res *Result) []string {
	keys := make([]string, len(words))
	for i, w := range words {
		keys[i] = wordKey(w)
	}
	var kept []string
	for i := 0; i < len(keys); {
		if n := c.phrases.MatchAt(keys, i); n > 0 {
			res.RemovedTokens = append(res.RemovedTokens, strings.Join(keys[i:i+n], " "))
			i += n
			continue
		}
		if _, ok := c.state[keys[i]]; ok {
			res.RemovedTokens = append(res.RemovedTokens, keys[i])
			i++
			continue
		}
		if keys[i] != "" {
			kept = append(kept, keys[i])
		}
		i++
	}
	return kept
}

func isBrandWord(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

func wordKey(w string) string {
	return normalize.Lower(strings.Trim(w, `.;:!?"'`))
}

func stripParentheticals(text string) (string, []string) {
	var removed []string
	for parenSpan.MatchString(text) {
		text = parenSpan.ReplaceAllStringFunc(text, func(span string) string {
			inner := collapse(span[1 : len(span)-1])
			if inner != "" {
				removed = append(removed, normalize.Lower(inner))
			}
			return " "
		})
	}
	text = strings.NewReplacer("(", " ", ")", " ").Replace(text)
	return collapse(text), removed
}

func remaining(segments []string, baseIdx int, container bool) []string {
	rest := make([]string, 0, len(segments))
	for i, seg := range segments {
		if i == baseIdx || (container && i == 0) {
			continue
		}
		rest = append(rest, seg)
	}
	return rest
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

func phraseSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if key := collapse(normalize.Lower(it)); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
