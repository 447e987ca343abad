package canonical

import "testing"

func TestBaseRuleScopes(t *testing.T) {
	anyBeer := BaseRule{Tag: "t", Scope: AnySegment, Term: "beer", Base: "beer"}
	if idx, ok := anyBeer.Match([]string{"light", "beer"}); !ok || idx != 1 {
		t.Errorf("AnySegment match = %d, %v", idx, ok)
	}
	if _, ok := anyBeer.Match([]string{"root beer"}); ok {
		t.Error("AnySegment must compare whole segments")
	}

	first := BaseRule{Tag: "t", Scope: FirstSegment, Term: "distilled", Base: "distilled spirits"}
	if _, ok := first.Match([]string{"all", "distilled"}); ok {
		t.Error("FirstSegment must only inspect the first segment")
	}
	if idx, ok := first.Match([]string{"distilled", "all"}); !ok || idx != 0 {
		t.Errorf("FirstSegment match = %d, %v", idx, ok)
	}
}

func TestSubtypeRuleWholeWords(t *testing.T) {
	rule := SubtypeRule{Tag: "beer:light", Base: "beer", Keyword: "light", Specific: "light beer"}
	if !rule.Match("beer", []string{"regular", "light"}) {
		t.Error("expected light to fire")
	}
	if rule.Match("beer", []string{"lightly salted"}) {
		t.Error("keyword must match whole words, not substrings")
	}
	if rule.Match("wine", []string{"light"}) {
		t.Error("rule must be scoped to its base")
	}

	phrase := SubtypeRule{Tag: "beer:low-carb", Base: "beer", Keyword: "low carb", Specific: "low carb beer"}
	if !phrase.Match("beer", []string{"light low carb"}) {
		t.Error("multi-word keyword should match a word run")
	}
	if phrase.Match("beer", []string{"low", "carb"}) {
		t.Error("multi-word keyword must stay within one segment")
	}
}

func TestDefaultSubtypeOrder(t *testing.T) {
	rules := DefaultRules()
	pos := map[string]int{}
	for i, r := range rules.Subtypes {
		pos[r.Tag] = i
	}
	if pos["beer:light"] > pos["beer:low-carb"] {
		t.Error("light must precede low carb")
	}
}
