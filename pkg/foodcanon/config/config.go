// Package config loads run configuration and the YAML vocabularies the
// pipeline stages are built from.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
)

// Taxonomy represents the taxonomy configuration
type Taxonomy struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadTaxonomy loads taxonomy from a YAML file
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, err
	}

	return &tax, nil
}

// Vocabulary lists tokenizer stopwords and state qualifiers.
type Vocabulary struct {
	Stopwords  []string `yaml:"stopwords"`
	StateWords []string `yaml:"state_words"`
}

// LoadVocabulary loads tokenizer word lists from a YAML file
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	return &v, nil
}

// LoadRules loads a canonicalizer rule set. Lists missing from the file
// keep their default values.
func LoadRules(path string) (canonical.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return canonical.Rules{}, err
	}

	rules := canonical.DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return canonical.Rules{}, err
	}

	return rules, nil
}
