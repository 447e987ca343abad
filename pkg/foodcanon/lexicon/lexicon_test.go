package lexicon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLexiconNew(t *testing.T) {
	lex := New()
	if lex == nil {
		t.Fatal("New() returned nil")
	}
	if stats := lex.Stats(); stats.Groups != 0 {
		t.Errorf("New lexicon should have 0 groups, got %d", stats.Groups)
	}
}

func TestLexiconAddSynonymGroup(t *testing.T) {
	lex := New()
	lex.AddSynonymGroup("black-pepper", "Black Pepper",
		[]string{"pepper", "fresh ground pepper", "Freshly ground black pepper"}, 170931)

	tests := []struct {
		input string
		want  string
	}{
		{"pepper", "black-pepper"},
		{"Fresh ground pepper", "black-pepper"},
		{"freshly ground black pepper,", "black-pepper"},
		{"BLACK PEPPER", "black-pepper"},
		{"Dragon fruit", "dragon-fruit"},
	}
	for _, tt := range tests {
		if got := lex.Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	variants := lex.Variants("pepper")
	if len(variants) != 4 {
		t.Errorf("Variants('pepper') returned %d variants, want 4: %v", len(variants), variants)
	}
	if variants[0] != "black pepper" {
		t.Errorf("display name should be the first variant, got %q", variants[0])
	}
	if got := lex.Variants("dragon fruit"); len(got) != 1 || got[0] != "dragon fruit" {
		t.Errorf("unknown Variants = %v", got)
	}
}

func TestLexiconReplaceGroupReleasesOldForms(t *testing.T) {
	lex := New()
	lex.AddSynonymGroup("butter", "", []string{"margarine", "salted butter"})
	lex.AddSynonymGroup("butter", "", []string{"salted butter"})

	if lex.HasSynonyms("margarine") {
		t.Error("margarine should be released after the group was replaced")
	}
	if !lex.HasSynonyms("salted butter") {
		t.Error("salted butter should still be known")
	}
}

func TestLexiconConfirms(t *testing.T) {
	lex := New()
	lex.AddSynonymGroup("beer", "Beer", []string{"lager", "ale"}, 174816)

	if !lex.Confirms("Lager", 174816) {
		t.Error("curated FDC id should confirm")
	}
	if !lex.Confirms("ale", 999, "beer") {
		t.Error("matching canonical slug should confirm")
	}
	if lex.Confirms("ale", 999, "wine", "") {
		t.Error("unrelated entry must not confirm")
	}
	if lex.Confirms("stout", 174816) {
		t.Error("unknown surface form must not confirm")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	content := `synonyms:
  - canonical: flour
    display: Flour
    variants: [all-purpose flour, plain flour, ap flour]
    fdc_ids: [789890]
  - canonical: milk
    variants: [whole milk, 2% milk]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}

	if got := lex.Normalize("All-Purpose Flour"); got != "flour" {
		t.Errorf("Normalize = %q, want flour", got)
	}
	if got := lex.Normalize("2% milk"); got != "milk" {
		t.Errorf("Normalize = %q, want milk", got)
	}

	stats := lex.Stats()
	if stats.Groups != 2 || stats.WithFDC != 1 {
		t.Errorf("stats = %+v", stats)
	}
	groups := lex.Groups()
	if groups[0].Slug != "flour" || groups[1].Slug != "milk" {
		t.Errorf("groups not sorted: %v", groups)
	}
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
