package normalize

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	got := Tokenize("Jalape&ntilde;o Peppers, RAW (chopped)")
	want := []string{"jalapeno", "peppers", "raw", "chopped"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestFoldCanonicalDecomposition(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Crème brûlée", "Creme brulee"},
		{"Jalape\u0301no", "Jalapeno"},
		{"Mac &amp;amp; cheese", "Mac & cheese"},
		{"½ cup", "½ cup"},
		{"\ufb01g jam", "\ufb01g jam"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Tokenize("½ cup flour"); !reflect.DeepEqual(got, []string{"cup", "flour"}) {
		t.Errorf("Tokenize(½ cup flour) = %v", got)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	inputs := []string{"", "Crème fraîche", "Beer, light, BUD LIGHT", "½ cup flour", "!!!"}
	for _, in := range inputs {
		first := Tokenize(in)
		for i := 0; i < 5; i++ {
			if again := Tokenize(in); !reflect.DeepEqual(first, again) {
				t.Fatalf("Tokenize(%q) not deterministic: %v vs %v", in, first, again)
			}
		}
	}
}

func TestTokenizeOnlyAlphanumeric(t *testing.T) {
	for _, tok := range Tokenize("Mac & cheese -- 3.25% milkfat; Ωmega straße") {
		for _, r := range tok {
			if !isAlnum(r) {
				t.Errorf("token %q contains %q", tok, r)
			}
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"!!!", ""},
		{"---", ""},
		{"Black Pepper", "black-pepper"},
		{"  Light   beer ", "light-beer"},
		{"Peanuts, dry-roasted", "peanuts-dry-roasted"},
		{"Crème brûlée", "creme-brulee"},
		{"a--b__c", "a-b-c"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyAlphabet(t *testing.T) {
	inputs := []string{"-x-", "((a))", "A  B", "ü-ö", "\t\n", "a,b;c", "10% fat"}
	for _, in := range inputs {
		s := Slugify(in)
		if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
			t.Errorf("Slugify(%q) = %q has stray hyphens", in, s)
		}
		for _, r := range s {
			if !isAlnum(r) && r != '-' {
				t.Errorf("Slugify(%q) = %q contains %q", in, s, r)
			}
		}
	}
}

func TestTokenizerSplit(t *testing.T) {
	tok := DefaultTokenizer()
	core, state := tok.Split("2% milk, with added vitamin D, fresh")
	if !reflect.DeepEqual(core, []string{"milk", "vitamin"}) {
		t.Errorf("core = %v", core)
	}
	if !reflect.DeepEqual(state, []string{"fresh"}) {
		t.Errorf("state = %v", state)
	}
}

func TestTokenizerSplitHyphenatedMethod(t *testing.T) {
	tok := DefaultTokenizer()
	core, state := tok.Split("Peanuts, dry-roasted")
	if !reflect.DeepEqual(core, []string{"peanuts", "dry"}) {
		t.Errorf("core = %v", core)
	}
	if !reflect.DeepEqual(state, []string{"roasted"}) {
		t.Errorf("state = %v", state)
	}
}

func TestTokenizerKeepsFormWords(t *testing.T) {
	core, _ := DefaultTokenizer().Split("olive oil")
	if !reflect.DeepEqual(core, []string{"olive", "oil"}) {
		t.Errorf("core = %v", core)
	}
}

func TestStemFoldsPlurals(t *testing.T) {
	pairs := [][2]string{{"tomatoes", "tomato"}, {"eggs", "egg"}}
	for _, p := range pairs {
		if Stem(p[0]) != Stem(p[1]) {
			t.Errorf("Stem(%q)=%q, Stem(%q)=%q", p[0], Stem(p[0]), p[1], Stem(p[1]))
		}
	}
	if Stem("2") != "2" {
		t.Error("short tokens should pass through")
	}
}

func TestPhraseMatcherLongestMatch(t *testing.T) {
	m := NewPhraseMatcher([]string{"ready to serve", "ready", "prepared from recipe"})
	keys := []string{"soup", "ready", "to", "serve", "prepared", "from", "recipe"}
	if n := m.MatchAt(keys, 0); n != 0 {
		t.Errorf("MatchAt(0) = %d, want 0", n)
	}
	if n := m.MatchAt(keys, 1); n != 3 {
		t.Errorf("MatchAt(1) = %d, want 3", n)
	}
	if n := m.MatchAt(keys, 4); n != 3 {
		t.Errorf("MatchAt(4) = %d, want 3", n)
	}
	if n := m.MatchAt(keys, 99); n != 0 {
		t.Errorf("MatchAt out of range = %d", n)
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d", m.Len())
	}
}
