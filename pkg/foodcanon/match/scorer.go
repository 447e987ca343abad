package match

import (
	"math"

	"github.com/hbollon/go-edlib"

	"github.com/cognicore/foodcanon/pkg/foodcanon/config"
	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
	"github.com/cognicore/foodcanon/pkg/foodcanon/taxonomy"
)

// Segment alignment levels.
const (
	SegmentFull       = "primary_strong"
	SegmentRestStrong = "rest_strong"
	SegmentPartial    = "partial"
	SegmentNone       = "none"
)

var segmentScores = map[string]float64{
	SegmentFull:       1.0,
	SegmentRestStrong: 0.6,
	SegmentPartial:    0.3,
	SegmentNone:       0,
}

// Breakdown holds the raw value of every signal behind a score.
type Breakdown struct {
	Overlap      float64
	JWRaw        float64
	JWGated      float64
	Gated        bool
	Segment      float64
	SegmentLevel string
	Affinity     float64
	Synonym      float64
}

// ScoredMatch is the score of one (ingredient, entry) pair.
type ScoredMatch struct {
	ExternalID int64
	Score      float64
	Status     store.MatchStatus
	Breakdown  Breakdown
}

// Scorer combines the five matching signals with fixed weights.
//
// score = wo·overlap + ws·jwGated + wg·segment + wa·affinity + wy·synonym
type Scorer struct {
	cfg     config.MatchConfig
	idf     *IDF
	lexicon *lexicon.Lexicon
}

// NewScorer creates a scorer. A nil lexicon confirms nothing.
func NewScorer(cfg config.MatchConfig, idf *IDF, lex *lexicon.Lexicon) *Scorer {
	if lex == nil {
		lex = lexicon.New()
	}
	return &Scorer{cfg: cfg, idf: idf, lexicon: lex}
}

// Score rates how well entry e describes ingredient ing. An ingredient
// without core tokens is a no_match with an empty breakdown.
func (s *Scorer) Score(ing Ingredient, e Entry) ScoredMatch {
	m := ScoredMatch{ExternalID: e.Item.ExternalID, Status: store.StatusNoMatch}
	if len(ing.Stems) == 0 {
		m.Breakdown.SegmentLevel = SegmentNone
		return m
	}

	b := Breakdown{}
	b.Overlap = s.overlap(ing.Stems, e.Stems)

	b.JWRaw = math.Max(similarity(ing.Normalized, e.Normalized), similarity(ing.Normalized, e.Inverted))
	b.JWGated = b.JWRaw
	if b.Overlap < s.cfg.Gate.MinOverlap {
		b.Gated = true
		b.JWGated = math.Min(b.JWRaw, s.cfg.Gate.Cap)
	}

	b.SegmentLevel = segmentLevel(ing.Stems, e.Segments)
	b.Segment = segmentScores[b.SegmentLevel]

	if taxonomy.Affinity(ing.Category, e.Item.Category) {
		b.Affinity = 1
	}
	if s.lexicon.Confirms(ing.Text, e.Item.ExternalID, e.BaseSlug, e.SpecificSlug) {
		b.Synonym = 1
	}

	w := s.cfg.Weights
	score := w.Overlap*b.Overlap +
		w.Similarity*b.JWGated +
		w.Segment*b.Segment +
		w.Affinity*b.Affinity +
		w.Synonym*b.Synonym

	m.Score = clamp01(score)
	m.Status = s.Classify(m.Score)
	m.Breakdown = b
	return m
}

// Classify maps a score to a status using the configured thresholds.
func (s *Scorer) Classify(score float64) store.MatchStatus {
	switch {
	case score >= s.cfg.Thresholds.Mapped:
		return store.StatusMapped
	case score >= s.cfg.Thresholds.Review:
		return store.StatusNeedsReview
	default:
		return store.StatusNoMatch
	}
}

// overlap is the IDF-weighted Jaccard similarity of two stem sets.
func (s *Scorer) overlap(a, b []string) float64 {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	var inter, union float64
	for _, t := range a {
		w := s.idf.Weight(t)
		union += w
		if _, ok := inB[t]; ok {
			inter += w
		}
	}
	inA := make(map[string]struct{}, len(a))
	for _, t := range a {
		inA[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := inA[t]; !ok {
			union += s.idf.Weight(t)
		}
	}
	if union == 0 {
		return 0
	}
	return inter / union
}

// similarity is the Jaro-Winkler similarity of two normalized strings.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// segmentLevel grades where the ingredient's stems sit in the entry:
// all in the primary segment, all in the entry with some outside the
// primary, some in the entry, or none.
func segmentLevel(ingStems []string, segments [][]string) string {
	if len(ingStems) == 0 || len(segments) == 0 {
		return SegmentNone
	}
	primary := make(map[string]struct{}, len(segments[0]))
	for _, t := range segments[0] {
		primary[t] = struct{}{}
	}
	all := make(map[string]struct{})
	for _, seg := range segments {
		for _, t := range seg {
			all[t] = struct{}{}
		}
	}

	inPrimary, inEntry := 0, 0
	for _, t := range ingStems {
		if _, ok := primary[t]; ok {
			inPrimary++
		}
		if _, ok := all[t]; ok {
			inEntry++
		}
	}
	switch {
	case inPrimary == len(ingStems):
		return SegmentFull
	case inEntry == len(ingStems):
		return SegmentRestStrong
	case inEntry > 0:
		return SegmentPartial
	default:
		return SegmentNone
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
