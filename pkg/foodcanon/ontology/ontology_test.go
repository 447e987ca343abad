package ontology

import (
	"path/filepath"
	"reflect"
	"testing"
)

func id(v int64) *int64 { return &v }

func TestEquivalenceClass(t *testing.T) {
	tests := map[string]string{
		"almonds-whole-raw": "almonds",
		"chicken-breast":    "chicken-breast",
		"garlic-minced":     "garlic",
		"tomatoes-canned":   "tomatoes",
	}
	for slug, want := range tests {
		if got := EquivalenceClass(slug); got != want {
			t.Errorf("EquivalenceClass(%q) = %q, want %q", slug, got, want)
		}
	}
}

func TestEnrichDerivesTokensAndModifiers(t *testing.T) {
	e := Enrich(Entry{
		Slug:         "Red Onion",
		DisplayName:  "Red onion",
		SurfaceForms: []string{"red onion", "Red Onion", "onion, red, chopped"},
	})
	if e.Slug != "red-onion" {
		t.Errorf("slug = %q", e.Slug)
	}
	if len(e.SurfaceForms) != 2 {
		t.Errorf("surface forms not deduplicated: %v", e.SurfaceForms)
	}
	want := []string{"chopped", "onion", "red"}
	if !reflect.DeepEqual(e.Tokens, want) {
		t.Errorf("tokens = %v, want %v", e.Tokens, want)
	}
	if !reflect.DeepEqual(e.Modifiers.Color, []string{"red"}) {
		t.Errorf("color = %v", e.Modifiers.Color)
	}
	if !reflect.DeepEqual(e.Modifiers.Prep, []string{"chopped"}) {
		t.Errorf("prep = %v", e.Modifiers.Prep)
	}
	if e.EquivalenceClass != "red-onion" {
		t.Errorf("equivalence class = %q", e.EquivalenceClass)
	}
	if e.Aliases == nil || e.Substitutions == nil {
		t.Error("expected collections to be initialized")
	}
}

func TestMergePrefersPrimary(t *testing.T) {
	primary := []Entry{{
		Slug:         "butter",
		DisplayName:  "Butter",
		SurfaceForms: []string{"butter", "unsalted butter"},
		FDC:          FDCRef{FDCID: id(173410)},
	}}
	secondary := []Entry{
		{Slug: "butter", DisplayName: "butter (dairy)", SurfaceForms: []string{"butter", "sweet cream butter"}, FDC: FDCRef{FDCID: id(1)}},
		{Slug: "garlic", DisplayName: "Garlic", SurfaceForms: []string{"garlic"}},
	}

	out := Merge(primary, secondary)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	b := out[0]
	if b.Slug != "butter" || b.DisplayName != "Butter" {
		t.Errorf("butter = %+v", b)
	}
	if *b.FDC.FDCID != 173410 {
		t.Errorf("fdc id = %d", *b.FDC.FDCID)
	}
	wantForms := []string{"butter", "unsalted butter", "sweet cream butter"}
	if !reflect.DeepEqual(b.SurfaceForms, wantForms) {
		t.Errorf("forms = %v, want %v", b.SurfaceForms, wantForms)
	}
	if out[1].Slug != "garlic" {
		t.Errorf("second = %q", out[1].Slug)
	}
}

func TestMergeFallsBackToSecondaryFDC(t *testing.T) {
	out := Merge(
		[]Entry{{Slug: "salt", SurfaceForms: []string{"salt"}}},
		[]Entry{{Slug: "salt", DisplayName: "Salt", SurfaceForms: []string{"table salt"}, FDC: FDCRef{FDCID: id(173468)}}},
	)
	if out[0].FDC.FDCID == nil || *out[0].FDC.FDCID != 173468 {
		t.Errorf("fdc = %+v", out[0].FDC)
	}
	if out[0].DisplayName != "Salt" {
		t.Errorf("display = %q", out[0].DisplayName)
	}
}

func TestPatchSurfaceForms(t *testing.T) {
	entries := []Entry{{Slug: "flour", SurfaceForms: []string{"flour"}}}
	added, missing := PatchSurfaceForms(entries, map[string][]string{
		"flour":  {"Flour", "all-purpose flour"},
		"yeasts": {"yeast"},
	})
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if !reflect.DeepEqual(missing, []string{"yeasts"}) {
		t.Errorf("missing = %v", missing)
	}
	if len(entries[0].SurfaceForms) != 2 {
		t.Errorf("forms = %v", entries[0].SurfaceForms)
	}
}

func TestAddEntries(t *testing.T) {
	base := []Entry{Enrich(Entry{Slug: "sugar", SurfaceForms: []string{"sugar"}})}
	out, added, merged := AddEntries(base, []Entry{
		{Slug: "Brown Sugar", SurfaceForms: []string{"brown sugar"}},
		{Slug: "sugar", SurfaceForms: []string{"granulated sugar", "sugar"}},
	})
	if added != 1 || merged != 1 {
		t.Errorf("added=%d merged=%d", added, merged)
	}
	if len(out) != 2 || out[0].Slug != "brown-sugar" {
		t.Errorf("out = %+v", out)
	}
	if len(base[0].SurfaceForms) != 1 {
		t.Error("input slice was mutated")
	}
}

func TestSaveLoadAndLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ontology.json")
	entries := []Entry{
		Enrich(Entry{Slug: "onion", DisplayName: "Onion", SurfaceForms: []string{"onion", "yellow onion"}, FDC: FDCRef{FDCID: id(170000)}}),
		Enrich(Entry{Slug: "black-pepper", DisplayName: "Black pepper", SurfaceForms: []string{"black pepper", "ground pepper"}}),
	}
	if err := Save(path, entries); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Slug != "black-pepper" {
		t.Fatalf("loaded = %+v", loaded)
	}

	lex := Lexicon(loaded)
	g, ok := lex.Lookup("Yellow Onion")
	if !ok || g.Slug != "onion" {
		t.Errorf("lookup yellow onion = %+v, %v", g, ok)
	}
	if !lex.Confirms("yellow onion", 170000) {
		t.Error("expected fdc id to confirm onion")
	}

	s := Summarize(loaded)
	if s.Entries != 2 || s.WithFDC != 1 || s.SurfaceForms != 4 {
		t.Errorf("stats = %+v", s)
	}
}
