// Package match scores free-text recipe ingredients against catalog
// entries and assembles the results into auditable mapping runs.
package match

import (
	"strings"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
	"github.com/cognicore/foodcanon/pkg/foodcanon/taxonomy"
)

// CatalogItem is one catalog food as read from the source data.
type CatalogItem struct {
	ExternalID  int64
	Description string
	Category    string
	DataType    string
}

// VocabItem is one recipe ingredient string and how often it occurs.
type VocabItem struct {
	Text      string
	Frequency int64
}

// Ingredient is a recipe ingredient prepared for scoring.
type Ingredient struct {
	Text       string
	Key        string
	Frequency  int64
	Core       []string
	State      []string
	Stems      []string
	Category   string
	Normalized string
}

// Entry is a catalog item prepared for scoring. Segments holds the core
// stems of each comma-separated segment; Segments[0] is the primary one.
type Entry struct {
	Item         CatalogItem
	Core         []string
	State        []string
	Stems        []string
	Segments     [][]string
	Normalized   string
	Inverted     string
	BaseSlug     string
	SpecificSlug string
	TotalWeight  float64
}

// Processor orchestrates preparation:
// text → core/state split → stems → category inference
type Processor struct {
	tokenizer *normalize.Tokenizer
	canon     *canonical.Canonicalizer
	taxonomy  *taxonomy.Taxonomy
}

// NewProcessor creates a processor with the given components. Nil
// components fall back to the defaults.
func NewProcessor(tokenizer *normalize.Tokenizer, canon *canonical.Canonicalizer, tax *taxonomy.Taxonomy) *Processor {
	if tokenizer == nil {
		tokenizer = normalize.DefaultTokenizer()
	}
	if canon == nil {
		canon = canonical.New(canonical.DefaultRules())
	}
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Processor{
		tokenizer: tokenizer,
		canon:     canon,
		taxonomy:  tax,
	}
}

// Ingredient prepares a vocabulary item.
func (p *Processor) Ingredient(v VocabItem) Ingredient {
	core, state := p.tokenizer.Split(v.Text)
	return Ingredient{
		Text:       v.Text,
		Key:        normalize.Slugify(v.Text),
		Frequency:  v.Frequency,
		Core:       core,
		State:      state,
		Stems:      stems(core),
		Category:   p.taxonomy.Infer(core),
		Normalized: strings.Join(core, " "),
	}
}

// Entry prepares a catalog item. IDF weights are applied later by the
// orchestrator.
func (p *Processor) Entry(item CatalogItem) Entry {
	e := Entry{Item: item}

	var segTexts []string
	for _, seg := range strings.Split(normalize.Fold(item.Description), ",") {
		core, state := p.tokenizer.Split(seg)
		e.State = append(e.State, state...)
		if len(core) == 0 {
			continue
		}
		e.Core = append(e.Core, core...)
		e.Segments = append(e.Segments, stems(core))
		segTexts = append(segTexts, strings.Join(core, " "))
	}
	e.Stems = stems(e.Core)
	e.Normalized = strings.Join(segTexts, " ")
	e.Inverted = strings.Join(reversed(segTexts), " ")

	res := p.canon.Canonicalize(item.Description)
	e.BaseSlug = res.BaseSlug
	e.SpecificSlug = res.SpecificSlug
	return e
}

// stems returns the unique stems of tokens in first-seen order.
func stems(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		s := normalize.Stem(tok)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func reversed(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

// DedupVocabulary merges items whose keys collide: frequencies are summed
// and the first text is kept. Items with an empty key are dropped. Order
// follows first occurrence.
func DedupVocabulary(items []VocabItem) []VocabItem {
	index := make(map[string]int, len(items))
	out := make([]VocabItem, 0, len(items))
	for _, it := range items {
		key := normalize.Slugify(it.Text)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Frequency += it.Frequency
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}
