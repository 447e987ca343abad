package canonical

import (
	"reflect"
	"strings"
	"testing"
)

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

func TestCanonicalizeExamples(t *testing.T) {
	tests := []struct {
		desc         string
		baseName     string
		specificName string
	}{
		{"Spices, pepper, black", "pepper", "black pepper"},
		{"Alcoholic beverage, beer, light, low carb", "beer", "light beer"},
		{"Alcoholic beverage, beer, light, BUD LIGHT", "beer", "light beer"},
		{"Alcoholic beverage, beer, regular, all", "beer", "regular beer"},
		{"Alcoholic beverage, wine, table, red", "wine", "red wine"},
		{"Alcoholic beverage, wine, dessert, sweet", "wine", "dessert wine"},
		{"Alcoholic beverage, distilled, all (gin, rum, vodka, whiskey) 80 proof", "distilled spirits", "distilled spirits"},
		{"Peanuts, all types, dry-roasted, with salt", "peanuts", "peanuts"},
		{"Onions, raw", "onions", "onions"},
		{"Pineapple juice, canned or bottled, unsweetened", "pineapple", "pineapple"},
		{"Bread, french or vienna (includes sourdough)", "bread", "bread"},
		{"Nuts, almonds", "almonds", "almonds"},
		{"Cereals, oats, regular and quick, not fortified, dry", "oats", "oats"},
		{"Spices, pepper, red or cayenne", "pepper", "pepper"},
		{"Fish, salmon, Atlantic, wild", "salmon", "atlantic salmon"},
		{"Soup, cream of chicken, canned, condensed", "soup", "soup"},
		{"Beverages, coffee, brewed, prepared with tap water", "coffee", "coffee"},
		{"Corn, sweet, yellow, frozen, kernels, unprepared", "corn", "corn"},
		{"Jalapeño peppers, raw", "jalapeno peppers", "jalapeno peppers"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := Canonicalize(tt.desc)
			if got.BaseName != tt.baseName {
				t.Errorf("BaseName = %q, want %q", got.BaseName, tt.baseName)
			}
			if got.SpecificName != tt.specificName {
				t.Errorf("SpecificName = %q, want %q", got.SpecificName, tt.specificName)
			}
			if got.RuleVersion != RuleVersion {
				t.Errorf("RuleVersion = %q", got.RuleVersion)
			}
		})
	}
}

func TestCanonicalizeCompoundMethodGuard(t *testing.T) {
	got := Canonicalize("Peanuts, all types, dry-roasted, with salt")
	if got.BaseName != "peanuts" || got.BaseSlug != "peanuts" {
		t.Fatalf("base = %q/%q, want peanuts", got.BaseName, got.BaseSlug)
	}
	for _, tok := range got.RemovedTokens {
		if tok == "dry" || tok == "dried" || strings.Contains(tok, "dry") {
			t.Errorf("dry-roasted lost a piece: removed %v", got.RemovedTokens)
		}
	}
}

func TestCanonicalizeContainerPromotion(t *testing.T) {
	got := Canonicalize("Spices, pepper, black")
	if got.BaseSlug != "pepper" || got.SpecificSlug != "black-pepper" {
		t.Fatalf("slugs = %q/%q", got.BaseSlug, got.SpecificSlug)
	}
	if !contains(got.RemovedTokens, "spices") {
		t.Errorf("spices not recorded as removed: %v", got.RemovedTokens)
	}
}

func TestCanonicalizeSubtypePrecedence(t *testing.T) {
	got := Canonicalize("Alcoholic beverage, beer, light, low carb")
	if got.SpecificName != "light beer" || got.SpecificSlug != "light-beer" {
		t.Fatalf("specific = %q/%q, want light beer", got.SpecificName, got.SpecificSlug)
	}
	if !contains(got.Fired, "beer:light") || contains(got.Fired, "beer:low-carb") {
		t.Errorf("fired = %v", got.Fired)
	}

	onlyLowCarb := Canonicalize("Alcoholic beverage, beer, low carb")
	if onlyLowCarb.SpecificName != "low carb beer" {
		t.Errorf("low carb alone = %q", onlyLowCarb.SpecificName)
	}
}

func TestCanonicalizeRecordsRemovals(t *testing.T) {
	got := Canonicalize("Alcoholic beverage, beer, light, BUD LIGHT (12 fl oz), ready-to-serve")
	for _, want := range []string{"12 fl oz", "alcoholic beverage", "bud light", "ready-to-serve"} {
		if !contains(got.RemovedTokens, want) {
			t.Errorf("RemovedTokens %v missing %q", got.RemovedTokens, want)
		}
	}
}

func TestCanonicalizeDegenerate(t *testing.T) {
	for _, in := range []string{"", "   ", "(raw)", ",,,", "raw, frozen", "!!!", "((()))"} {
		got := Canonicalize(in)
		if got.BaseSlug != Unknown || got.SpecificSlug != Unknown {
			t.Errorf("Canonicalize(%q) = %q/%q, want unknown", in, got.BaseSlug, got.SpecificSlug)
		}
	}
}

func TestCanonicalizeAllCapsKeepsWords(t *testing.T) {
	got := Canonicalize("ONIONS, RAW")
	if got.BaseSlug != "onions" {
		t.Errorf("all-caps description lost its identity: %q", got.BaseSlug)
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	inputs := []string{
		"Spices, pepper, black",
		"Alcoholic beverage, beer, light, BUD LIGHT",
		"Cheese, pasteurized process, American (includes Velveeta)",
		"",
		"((nested (parens)) only)",
	}
	for _, in := range inputs {
		first := Canonicalize(in)
		second := Canonicalize(in)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Canonicalize(%q) differs between calls: %+v vs %+v", in, first, second)
		}
	}
}

func TestCanonicalizeIdempotentOnBase(t *testing.T) {
	inputs := []string{
		"Spices, pepper, black",
		"Peanuts, all types, dry-roasted, with salt",
		"Alcoholic beverage, distilled, all (gin, rum, vodka, whiskey) 80 proof",
		"Alcoholic beverage, wine, table, red",
		"Mac &amp;amp; cheese, KRAFT, prepared from recipe",
		"Nuts, beverages",
		"Cheese, cheddar (sharp)",
		"Spices",
	}
	for _, in := range inputs {
		first := Canonicalize(in)
		again := Canonicalize(first.BaseName)
		if again.BaseSlug != first.BaseSlug {
			t.Errorf("Canonicalize(%q).BaseName=%q re-resolves to %q, want %q",
				in, first.BaseName, again.BaseSlug, first.BaseSlug)
		}
	}
}

func TestSpecificRefinesBase(t *testing.T) {
	inputs := []string{
		"Spices, pepper, black",
		"Spices, pepper, red or cayenne",
		"Alcoholic beverage, wine, cooking",
		"Fish, salmon, Atlantic, wild",
		"Onions, raw",
	}
	for _, in := range inputs {
		got := Canonicalize(in)
		if !Refines(got.SpecificSlug, got.BaseSlug) {
			t.Errorf("%q: specific %q does not refine base %q", in, got.SpecificSlug, got.BaseSlug)
		}
	}
}

func TestCustomRulesDiscardNonRefiningSpecific(t *testing.T) {
	rules := DefaultRules()
	rules.Subtypes = append([]SubtypeRule{{Tag: "bad", Base: "beer", Keyword: "light", Specific: "lager"}}, rules.Subtypes...)
	got := New(rules).Canonicalize("Beer, light")
	if got.SpecificSlug != "beer" {
		t.Errorf("non-refining specific kept: %q", got.SpecificSlug)
	}
}
