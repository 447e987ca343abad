// Package taxonomy infers a food category for free-text ingredients so the
// scorer can compare it with the catalog's stored category.
package taxonomy

import (
	"sort"

	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// Taxonomy maps food categories to keyword stems.
type Taxonomy struct {
	categories map[string]map[string]struct{} // category → keyword stems
}

// New creates an empty taxonomy.
func New() *Taxonomy {
	return &Taxonomy{categories: make(map[string]map[string]struct{})}
}

// AddCategory adds keywords to a category. Keywords are tokenized and
// stemmed, so "Tomatoes" and "tomato" are the same keyword.
func (t *Taxonomy) AddCategory(name string, keywords []string) {
	if name == "" {
		return
	}
	set := t.categories[name]
	if set == nil {
		set = make(map[string]struct{}, len(keywords))
		t.categories[name] = set
	}
	for _, kw := range keywords {
		for _, tok := range normalize.Tokenize(kw) {
			set[normalize.Stem(tok)] = struct{}{}
		}
	}
}

// Categories returns the category names, sorted.
func (t *Taxonomy) Categories() []string {
	out := make([]string, 0, len(t.categories))
	for name := range t.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AssignCategories returns every category with at least one keyword among
// tokens, sorted.
func (t *Taxonomy) AssignCategories(tokens []string) []string {
	hits := t.hits(tokens)
	out := make([]string, 0, len(hits))
	for cat := range hits {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Infer returns the single best category for tokens: the one with the most
// keyword hits, ties going to the lexically smaller name. It returns "" when
// nothing matches.
func (t *Taxonomy) Infer(tokens []string) string {
	best, bestHits := "", 0
	for cat, n := range t.hits(tokens) {
		if n > bestHits || (n == bestHits && cat < best) {
			best, bestHits = cat, n
		}
	}
	return best
}

func (t *Taxonomy) hits(tokens []string) map[string]int {
	stems := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		stems[normalize.Stem(normalize.Lower(tok))] = struct{}{}
	}
	hits := make(map[string]int)
	for cat, keywords := range t.categories {
		for stem := range stems {
			if _, ok := keywords[stem]; ok {
				hits[cat]++
			}
		}
	}
	return hits
}

// Affinity reports whether two category labels name the same category.
// Empty labels never match.
func Affinity(a, b string) bool {
	sa, sb := normalize.Slugify(a), normalize.Slugify(b)
	return sa != "" && sa == sb
}
