package config

import (
	"fmt"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
	"github.com/cognicore/foodcanon/pkg/foodcanon/ontology"
	"github.com/cognicore/foodcanon/pkg/foodcanon/taxonomy"
)

// Loader loads all configuration files and constructs components.
// Empty paths fall back to the built-in defaults.
type Loader struct {
	VocabularyPath string
	RulesPath      string
	TaxonomyPath   string
	SynonymsPath   string
	OntologyPath   string
}

// Components holds all loaded configuration components
type Components struct {
	Tokenizer     *normalize.Tokenizer
	Canonicalizer *canonical.Canonicalizer
	Taxonomy      *taxonomy.Taxonomy
	Lexicon       *lexicon.Lexicon
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.VocabularyPath != "" {
		vocab, err := LoadVocabulary(l.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		comp.Tokenizer = normalize.NewTokenizer(vocab.Stopwords, vocab.StateWords)
	} else {
		comp.Tokenizer = normalize.DefaultTokenizer()
	}

	if l.RulesPath != "" {
		rules, err := LoadRules(l.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		comp.Canonicalizer = canonical.New(rules)
	} else {
		comp.Canonicalizer = canonical.New(canonical.DefaultRules())
	}

	if l.TaxonomyPath != "" {
		taxConfig, err := LoadTaxonomy(l.TaxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		comp.Taxonomy = taxonomy.New()
		for name, keywords := range taxConfig.Categories {
			comp.Taxonomy.AddCategory(name, keywords)
		}
	} else {
		comp.Taxonomy = taxonomy.Default()
	}

	// The ontology seeds the lexicon; a synonyms file layers on top.
	comp.Lexicon = lexicon.New()
	if l.OntologyPath != "" {
		entries, err := ontology.Load(l.OntologyPath)
		if err != nil {
			return nil, fmt.Errorf("load ontology: %w", err)
		}
		comp.Lexicon = ontology.Lexicon(entries)
	}
	if l.SynonymsPath != "" {
		syn, err := LoadSynonyms(l.SynonymsPath)
		if err != nil {
			return nil, fmt.Errorf("load synonyms: %w", err)
		}
		for _, g := range syn.Groups() {
			comp.Lexicon.AddSynonymGroup(g.Slug, g.Display, g.Variants, g.FDCIDs...)
		}
	}

	return comp, nil
}

// LoadSynonyms loads a synonym table from a YAML file.
func LoadSynonyms(path string) (*lexicon.Lexicon, error) {
	return lexicon.LoadFromYAML(path)
}
