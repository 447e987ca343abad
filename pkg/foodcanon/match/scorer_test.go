package match

import (
	"math"
	"reflect"
	"testing"

	"github.com/cognicore/foodcanon/pkg/foodcanon/config"
	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

func prepare(t *testing.T, items []CatalogItem) (*Processor, []Entry, *IDF) {
	t.Helper()
	p := NewProcessor(nil, nil, nil)
	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = p.Entry(it)
	}
	return p, entries, BuildIDF(entries)
}

func TestScoreExactMatch(t *testing.T) {
	p, entries, idf := prepare(t, []CatalogItem{
		{ExternalID: 6, Description: "Olive oil", Category: "Fats and Oils"},
		{ExternalID: 5, Description: "Butter, salted", Category: "Dairy and Egg Products"},
	})
	s := NewScorer(config.Default(), idf, nil)

	m := s.Score(p.Ingredient(VocabItem{Text: "olive oil"}), entries[0])
	b := m.Breakdown
	if b.Overlap != 1 || b.Segment != 1 || b.Affinity != 1 || b.Synonym != 0 {
		t.Errorf("breakdown = %+v", b)
	}
	if math.Abs(b.JWRaw-1) > 1e-6 || b.Gated {
		t.Errorf("similarity = %v gated=%v", b.JWRaw, b.Gated)
	}
	if math.Abs(m.Score-0.9) > 1e-6 {
		t.Errorf("score = %v, want 0.9", m.Score)
	}
	if m.Status != store.StatusMapped {
		t.Errorf("status = %s, want mapped", m.Status)
	}
	if m.ExternalID != 6 {
		t.Errorf("external id = %d", m.ExternalID)
	}
}

func TestScoreSynonymBonus(t *testing.T) {
	p, entries, idf := prepare(t, []CatalogItem{
		{ExternalID: 2, Description: "Spices, pepper, black", Category: "Spices and Herbs"},
	})
	lex := lexicon.New()
	lex.AddSynonymGroup("black-pepper", "black pepper", []string{"ground black pepper"})

	with := NewScorer(config.Default(), idf, lex).Score(p.Ingredient(VocabItem{Text: "ground black pepper"}), entries[0])
	without := NewScorer(config.Default(), idf, nil).Score(p.Ingredient(VocabItem{Text: "ground black pepper"}), entries[0])

	if with.Breakdown.Synonym != 1 || without.Breakdown.Synonym != 0 {
		t.Fatalf("synonym = %v / %v", with.Breakdown.Synonym, without.Breakdown.Synonym)
	}
	if math.Abs(with.Score-without.Score-0.1) > 1e-9 {
		t.Errorf("synonym bonus = %v, want 0.1", with.Score-without.Score)
	}
	if with.Breakdown.SegmentLevel != SegmentRestStrong {
		t.Errorf("segment level = %s", with.Breakdown.SegmentLevel)
	}
}

func TestScoreGatesSimilarity(t *testing.T) {
	p, entries, idf := prepare(t, []CatalogItem{
		{ExternalID: 9, Description: "Peanut butter", Category: "Legumes and Legume Products"},
	})
	cfg := config.Default()
	s := NewScorer(cfg, idf, nil)

	m := s.Score(p.Ingredient(VocabItem{Text: "peanutbutter"}), entries[0])
	b := m.Breakdown
	if b.Overlap != 0 {
		t.Fatalf("overlap = %v, want 0", b.Overlap)
	}
	if b.JWRaw < 0.9 {
		t.Fatalf("raw similarity = %v, want near-identical strings", b.JWRaw)
	}
	if !b.Gated || b.JWGated != cfg.Gate.Cap {
		t.Errorf("gate did not fire: %+v", b)
	}
	if m.Status != store.StatusNoMatch {
		t.Errorf("status = %s", m.Status)
	}
}

func TestScoreEmptyCore(t *testing.T) {
	p, entries, idf := prepare(t, []CatalogItem{{ExternalID: 1, Description: "Onions, raw"}})
	m := NewScorer(config.Default(), idf, nil).Score(p.Ingredient(VocabItem{Text: "fresh, chopped"}), entries[0])
	if m.Score != 0 || m.Status != store.StatusNoMatch {
		t.Errorf("empty core = %+v", m)
	}
}

func TestScoreMissingCategoryIsNeutral(t *testing.T) {
	p, entries, idf := prepare(t, []CatalogItem{
		{ExternalID: 1, Description: "Onions", Category: ""},
		{ExternalID: 2, Description: "Onions", Category: "Baked Products"},
	})
	s := NewScorer(config.Default(), idf, nil)
	ing := p.Ingredient(VocabItem{Text: "onions"})
	a, b := s.Score(ing, entries[0]), s.Score(ing, entries[1])
	if a.Breakdown.Affinity != 0 || b.Breakdown.Affinity != 0 {
		t.Errorf("affinity = %v / %v", a.Breakdown.Affinity, b.Breakdown.Affinity)
	}
	if a.Score != b.Score {
		t.Errorf("missing and mismatched category scored differently: %v vs %v", a.Score, b.Score)
	}
}

func TestClassify(t *testing.T) {
	s := NewScorer(config.Default(), BuildIDF(nil), nil)
	tests := []struct {
		score float64
		want  store.MatchStatus
	}{
		{0.95, store.StatusMapped},
		{0.80, store.StatusMapped},
		{0.79, store.StatusNeedsReview},
		{0.40, store.StatusNeedsReview},
		{0.39, store.StatusNoMatch},
		{0, store.StatusNoMatch},
	}
	for _, tt := range tests {
		if got := s.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSegmentLevel(t *testing.T) {
	segments := [][]string{{"pepper"}, {"black"}, {"ground"}}
	tests := []struct {
		stems []string
		want  string
	}{
		{[]string{"pepper"}, SegmentFull},
		{[]string{"black", "pepper"}, SegmentRestStrong},
		{[]string{"black", "salt"}, SegmentPartial},
		{[]string{"salt"}, SegmentNone},
		{nil, SegmentNone},
	}
	for _, tt := range tests {
		if got := segmentLevel(tt.stems, segments); got != tt.want {
			t.Errorf("segmentLevel(%v) = %s, want %s", tt.stems, got, tt.want)
		}
	}
}

func TestReasonCodes(t *testing.T) {
	got := ReasonCodes(Breakdown{Overlap: 0.7, JWGated: 0.95, SegmentLevel: SegmentFull, Affinity: 1, Synonym: 1})
	want := []string{"token_overlap:high", "jw:high", "segment:primary_strong", "category:match", "synonym:confirmed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReasonCodes = %v, want %v", got, want)
	}

	got = ReasonCodes(Breakdown{Overlap: 0.1, JWRaw: 0.97, JWGated: 0.1, Gated: true, SegmentLevel: SegmentPartial})
	want = []string{"token_overlap:low", "jw:gated", "segment:partial"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReasonCodes = %v, want %v", got, want)
	}

	got = ReasonCodes(Breakdown{Overlap: 0.4, JWGated: 0.8, SegmentLevel: SegmentNone})
	want = []string{"token_overlap:medium", "jw:medium", "segment:none"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReasonCodes = %v, want %v", got, want)
	}
}
