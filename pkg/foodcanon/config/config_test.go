package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadVocabulary(t *testing.T) {
	path := writeFile(t, "vocab.yaml", `stopwords:
  - the
  - a
  - and
state_words:
  - raw
  - cooked
`)

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("Failed to load vocabulary: %v", err)
	}
	if len(v.Stopwords) != 3 {
		t.Errorf("Expected 3 stopwords, got %d", len(v.Stopwords))
	}
	if len(v.StateWords) != 2 {
		t.Errorf("Expected 2 state words, got %d", len(v.StateWords))
	}
}

func TestLoadTaxonomy(t *testing.T) {
	path := writeFile(t, "taxonomy.yaml", `categories:
  Dairy and Egg Products:
    - milk
    - cheese
  Spices and Herbs:
    - pepper
`)

	tax, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("Failed to load taxonomy: %v", err)
	}
	if len(tax.Categories) != 2 {
		t.Errorf("Expected 2 categories, got %d", len(tax.Categories))
	}
	if len(tax.Categories["Dairy and Egg Products"]) != 2 {
		t.Error("Dairy should have 2 keywords")
	}
}

func TestLoadRulesKeepsDefaults(t *testing.T) {
	path := writeFile(t, "rules.yaml", `containers:
  - spices
  - herbs
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("Failed to load rules: %v", err)
	}
	if len(rules.Containers) != 2 || rules.Containers[1] != "herbs" {
		t.Errorf("containers = %v", rules.Containers)
	}
	if len(rules.Subtypes) == 0 {
		t.Error("expected default subtype rules to survive")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadTaxonomy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing taxonomy")
	}
}
