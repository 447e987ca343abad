// Package ontology maintains the curated ingredient ontology: canonical
// ingredient slugs with their surface forms, modifier classification and
// reference catalog entry. It is the source of the matcher's synonym table.
package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// Entry is one canonical ingredient.
type Entry struct {
	Slug             string              `json:"slug"`
	DisplayName      string              `json:"displayName"`
	SurfaceForms     []string            `json:"surfaceForms"`
	Tokens           []string            `json:"tokens"`
	Modifiers        Modifiers           `json:"modifiers"`
	Aliases          map[string][]string `json:"aliases"`
	FDC              FDCRef              `json:"fdc"`
	EquivalenceClass string              `json:"equivalenceClass"`
	Taxonomy         Taxonomy            `json:"taxonomy"`
	Substitutions    []string            `json:"substitutions"`
}

// FDCRef points at the reference catalog entry. Nil fields are unknown.
type FDCRef struct {
	FDCID       *int64  `json:"fdcId"`
	DataType    *string `json:"dataType"`
	Description *string `json:"description"`
}

// Modifiers classifies an entry's tokens by the role they play.
type Modifiers struct {
	Color  []string `json:"color"`
	Form   []string `json:"form"`
	Prep   []string `json:"prep"`
	Size   []string `json:"size"`
	Origin []string `json:"origin"`
}

// Taxonomy is the biological classification, mostly unfilled.
type Taxonomy struct {
	Group   *string `json:"group"`
	Family  *string `json:"family"`
	Genus   *string `json:"genus"`
	Species *string `json:"species"`
}

var (
	colorWords = wordSet("red", "green", "yellow", "orange", "purple", "white", "black", "brown", "golden")
	formWords  = wordSet("raw", "cooked", "dried", "ground", "fresh", "frozen", "canned", "whole", "powdered")
	prepWords  = wordSet(
		"chopped", "diced", "minced", "sliced", "shredded", "peeled", "seeded",
		"grated", "crushed", "roasted", "toasted", "smoked", "blanched", "sauteed",
		"melted", "softened", "julienned", "cubed", "mashed", "pureed",
	)
	sizeWords = wordSet("small", "medium", "large", "thin", "thick", "baby", "mini")
)

// equivalenceSuffixes are removed from a slug in one pass, in this order.
var equivalenceSuffixes = []string{
	"-raw", "-cooked", "-frozen", "-canned", "-peeled", "-seeded",
	"-boneless", "-skinless", "-dried", "-ground", "-fresh", "-smoked",
	"-roasted", "-toasted", "-whole", "-sliced", "-diced", "-minced",
	"-chopped", "-shredded", "-crushed",
}

// Load reads an ontology JSON array.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ontology %s: %w", path, err)
	}
	return entries, nil
}

// Save writes entries as indented JSON, sorted by slug.
func Save(path string, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Slug < sorted[j].Slug })
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeriveTokens returns the unique, sorted words of at least two characters
// across all surface forms.
func DeriveTokens(surfaceForms []string) []string {
	set := make(map[string]struct{})
	for _, form := range surfaceForms {
		for _, word := range strings.Fields(normalize.Lower(form)) {
			cleaned := strings.Join(normalize.Tokenize(word), "")
			if len(cleaned) >= 2 {
				set[cleaned] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// DeriveModifiers classifies tokens into the fixed modifier word sets.
func DeriveModifiers(tokens []string) Modifiers {
	m := Modifiers{
		Color:  []string{},
		Form:   []string{},
		Prep:   []string{},
		Size:   []string{},
		Origin: []string{},
	}
	for _, tok := range tokens {
		if colorWords[tok] {
			m.Color = append(m.Color, tok)
		}
		if formWords[tok] {
			m.Form = append(m.Form, tok)
		}
		if prepWords[tok] {
			m.Prep = append(m.Prep, tok)
		}
		if sizeWords[tok] {
			m.Size = append(m.Size, tok)
		}
	}
	return m
}

// EquivalenceClass strips state suffixes from a slug:
// "almonds-whole-raw" -> "almonds-whole" -> "almonds".
func EquivalenceClass(slug string) string {
	base := slug
	for _, suf := range equivalenceSuffixes {
		base = strings.TrimSuffix(base, suf)
	}
	return base
}

// DedupOrdered removes case-insensitive duplicates and blanks, keeping the
// first spelling of each.
func DedupOrdered(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(it))
	}
	return out
}

// Enrich fills tokens, modifiers and the equivalence class and initializes
// empty collections. An explicit equivalence class is kept.
func Enrich(e Entry) Entry {
	e.Slug = normalize.Slugify(e.Slug)
	e.SurfaceForms = DedupOrdered(e.SurfaceForms)
	e.Tokens = DeriveTokens(e.SurfaceForms)
	e.Modifiers = DeriveModifiers(e.Tokens)
	if e.EquivalenceClass == "" {
		e.EquivalenceClass = EquivalenceClass(e.Slug)
	}
	if e.Aliases == nil {
		e.Aliases = map[string][]string{}
	}
	if e.Substitutions == nil {
		e.Substitutions = []string{}
	}
	if e.FDC.FDCID != nil && *e.FDC.FDCID <= 0 {
		e.FDC.FDCID = nil
	}
	return e
}

// Merge unions two ontologies by slug. On collision the primary entry's
// display name wins, its FDC reference wins unless it has no id, and
// surface forms are concatenated primary first. The result is enriched
// and sorted by slug.
func Merge(primary, secondary []Entry) []Entry {
	bySlug := make(map[string]Entry, len(primary)+len(secondary))
	for _, e := range secondary {
		bySlug[normalize.Slugify(e.Slug)] = e
	}
	for _, p := range primary {
		slug := normalize.Slugify(p.Slug)
		s, ok := bySlug[slug]
		if !ok {
			bySlug[slug] = p
			continue
		}
		merged := p
		if merged.DisplayName == "" {
			merged.DisplayName = s.DisplayName
		}
		if merged.FDC.FDCID == nil {
			merged.FDC = s.FDC
		}
		merged.SurfaceForms = append(append([]string(nil), p.SurfaceForms...), s.SurfaceForms...)
		bySlug[slug] = merged
	}

	out := make([]Entry, 0, len(bySlug))
	for _, e := range bySlug {
		out = append(out, Enrich(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// PatchSurfaceForms appends new surface forms to existing entries, skipping
// forms an entry already has (case-insensitive). It returns the number of
// forms added and the patch slugs that matched no entry, sorted.
func PatchSurfaceForms(entries []Entry, patches map[string][]string) (added int, missing []string) {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Slug] = i
	}
	for slug, forms := range patches {
		i, ok := index[slug]
		if !ok {
			missing = append(missing, slug)
			continue
		}
		added += appendForms(&entries[i], forms)
	}
	sort.Strings(missing)
	return added, missing
}

// AddEntries enriches and appends entries whose slug is new. Entries whose
// slug already exists contribute their surface forms instead. The result is
// sorted by slug.
func AddEntries(entries, additions []Entry) (out []Entry, added, mergedForms int) {
	out = append([]Entry(nil), entries...)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.Slug] = i
	}
	for _, raw := range additions {
		slug := normalize.Slugify(raw.Slug)
		if i, ok := index[slug]; ok {
			mergedForms += appendForms(&out[i], raw.SurfaceForms)
			continue
		}
		out = append(out, Enrich(raw))
		index[slug] = len(out) - 1
		added++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, added, mergedForms
}

// Lexicon builds the matcher's synonym table from the ontology.
func Lexicon(entries []Entry) *lexicon.Lexicon {
	lex := lexicon.New()
	for _, e := range entries {
		var ids []int64
		if e.FDC.FDCID != nil {
			ids = append(ids, *e.FDC.FDCID)
		}
		lex.AddSynonymGroup(e.Slug, e.DisplayName, e.SurfaceForms, ids...)
	}
	return lex
}

// Stats summarizes an ontology.
type Stats struct {
	Entries      int
	WithFDC      int
	SurfaceForms int
}

// Summarize counts entries, entries with a reference id and surface forms.
func Summarize(entries []Entry) Stats {
	var s Stats
	s.Entries = len(entries)
	for _, e := range entries {
		if e.FDC.FDCID != nil {
			s.WithFDC++
		}
		s.SurfaceForms += len(e.SurfaceForms)
	}
	return s
}

func appendForms(e *Entry, forms []string) int {
	e.SurfaceForms = append([]string(nil), e.SurfaceForms...)
	existing := make(map[string]struct{}, len(e.SurfaceForms))
	for _, sf := range e.SurfaceForms {
		existing[strings.ToLower(sf)] = struct{}{}
	}
	added := 0
	for _, f := range forms {
		key := strings.ToLower(f)
		if _, ok := existing[key]; ok {
			continue
		}
		e.SurfaceForms = append(e.SurfaceForms, f)
		existing[key] = struct{}{}
		added++
	}
	return added
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
