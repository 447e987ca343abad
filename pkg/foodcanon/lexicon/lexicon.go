package lexicon

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// Lexicon is the confirmed synonym table for ingredient matching. Each
// group is a canonical slug with every surface form known to mean it and
// the catalog entries curated as its reference.
//
// Surface forms are compared after normalization, so "Black Pepper," and
// "black pepper" are the same key. A surface form belongs to exactly one
// group; re-adding moves it. A Lexicon is read-only once built and safe to
// share across scoring goroutines.
type Lexicon struct {
	// canonical slug -> group
	groups map[string]*Group

	// normalized surface form -> canonical slug
	// Example: "fresh ground pepper" -> "black-pepper"
	reverseIndex map[string]string
}

// Group is one canonical ingredient and its surface forms.
type Group struct {
	Slug     string
	Display  string
	Variants []string
	FDCIDs   []int64
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		groups:       make(map[string]*Group),
		reverseIndex: make(map[string]string),
	}
}

// LoadFromYAML loads synonym groups from a YAML file.
//
// Expected format:
//
//	synonyms:
//	  - canonical: black-pepper
//	    display: Black Pepper
//	    variants: [pepper, ground black pepper, cracked black pepper]
//	    fdc_ids: [170931]
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Synonyms []struct {
			Canonical string   `yaml:"canonical"`
			Display   string   `yaml:"display"`
			Variants  []string `yaml:"variants"`
			FDCIDs    []int64  `yaml:"fdc_ids"`
		} `yaml:"synonyms"`
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	lex := New()
	for _, entry := range config.Synonyms {
		lex.AddSynonymGroup(entry.Canonical, entry.Display, entry.Variants, entry.FDCIDs...)
	}
	return lex, nil
}

// AddSynonymGroup adds a group. The canonical slug is normalized with
// normalize.Slugify and its display name (or the slug's words) is always
// a variant. If the group already exists its old surface forms are
// released first.
func (l *Lexicon) AddSynonymGroup(canonical, display string, variants []string, fdcIDs ...int64) {
	slug := normalize.Slugify(canonical)
	if slug == "" {
		return
	}

	if old, exists := l.groups[slug]; exists {
		for _, v := range old.Variants {
			if l.reverseIndex[v] == slug {
				delete(l.reverseIndex, v)
			}
		}
	}

	if display == "" {
		display = strings.ReplaceAll(slug, "-", " ")
	}

	seen := make(map[string]bool)
	normalized := make([]string, 0, len(variants)+1)
	for _, v := range append([]string{display}, variants...) {
		key := Key(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, key)
	}

	ids := append([]int64(nil), fdcIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	l.groups[slug] = &Group{Slug: slug, Display: display, Variants: normalized, FDCIDs: ids}
	for _, v := range normalized {
		l.reverseIndex[v] = slug
	}
}

// Key is the normalized form used to compare surface forms.
func Key(text string) string {
	return strings.Join(normalize.Tokenize(text), " ")
}

// Normalize returns the canonical slug for a surface form, or the slug of
// the text itself when the lexicon does not know it.
//
// Examples:
//   - Normalize("Fresh ground pepper") -> "black-pepper"
//   - Normalize("Dragon fruit") -> "dragon-fruit"
func (l *Lexicon) Normalize(text string) string {
	if slug, ok := l.reverseIndex[Key(text)]; ok {
		return slug
	}
	return normalize.Slugify(text)
}

// Lookup returns the group a surface form belongs to.
func (l *Lexicon) Lookup(text string) (Group, bool) {
	slug, ok := l.reverseIndex[Key(text)]
	if !ok {
		return Group{}, false
	}
	return *l.groups[slug], true
}

// Variants returns all known surface forms for text's group, or just
// text's own key when it is unknown.
func (l *Lexicon) Variants(text string) []string {
	if g, ok := l.Lookup(text); ok {
		return g.Variants
	}
	return []string{Key(text)}
}

// HasSynonyms reports whether the surface form is in the lexicon.
func (l *Lexicon) HasSynonyms(text string) bool {
	_, ok := l.reverseIndex[Key(text)]
	return ok
}

// Confirms reports whether the (ingredient, catalog entry) pair is a
// confirmed synonym: the ingredient's group names the entry's FDC id, or
// the group slug equals the entry's canonical base or specific slug.
func (l *Lexicon) Confirms(ingredient string, externalID int64, entrySlugs ...string) bool {
	g, ok := l.Lookup(ingredient)
	if !ok {
		return false
	}
	i := sort.Search(len(g.FDCIDs), func(i int) bool { return g.FDCIDs[i] >= externalID })
	if i < len(g.FDCIDs) && g.FDCIDs[i] == externalID {
		return true
	}
	for _, s := range entrySlugs {
		if s != "" && s == g.Slug {
			return true
		}
	}
	return false
}

// Groups returns every group sorted by slug.
func (l *Lexicon) Groups() []Group {
	out := make([]Group, 0, len(l.groups))
	for _, g := range l.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicon) Stats() LexiconStats {
	totalVariants := 0
	withFDC := 0
	for _, g := range l.groups {
		totalVariants += len(g.Variants)
		if len(g.FDCIDs) > 0 {
			withFDC++
		}
	}
	return LexiconStats{
		Groups:        len(l.groups),
		TotalVariants: totalVariants,
		WithFDC:       withFDC,
	}
}

// LexiconStats holds statistics about lexicon contents.
type LexiconStats struct {
	Groups        int // Number of canonical slugs
	TotalVariants int // Surface forms across all groups
	WithFDC       int // Groups naming at least one reference catalog entry
}
