package taxonomy

import (
	"math"
	"sort"

	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// Drift kinds.
const (
	DriftLowCoverage = "low_coverage" // category keyword rarely seen in the category's entries
	DriftOrphan      = "orphan"       // frequent stem that belongs to no category
)

// Document is one labeled catalog entry: its tokens and stored category.
type Document struct {
	Tokens   []string
	Category string
}

// Thresholds control drift sensitivity. Zero fields take defaults.
type Thresholds struct {
	MinCoverage    float64 // keywords below this share of their category's entries are flagged
	MinMissedDocs  int     // and must be missing from at least this many entries
	MinOrphanDF    float64 // share of all entries an orphan stem must appear in
	ConfidenceBias float64
}

// DefaultThresholds returns the thresholds used when none are set.
func DefaultThresholds() Thresholds {
	return Thresholds{MinCoverage: 0.4, MinMissedDocs: 10, MinOrphanDF: 0.05, ConfidenceBias: 0.2}
}

// Suggestion proposes a taxonomy edit. For low coverage it names a keyword
// to review; for orphans it names a stem to add, with the category most of
// its entries carry (or "").
type Suggestion struct {
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	Keyword    string  `json:"keyword"`
	Coverage   float64 `json:"coverage"` // keyword coverage, or document frequency for orphans
	Support    int     `json:"support"`  // entries containing the keyword
	Missed     int     `json:"missed"`   // category entries lacking it (0 for orphans)
	Confidence float64 `json:"confidence"`
}

// Drift compares the taxonomy with a labeled catalog and returns
// suggestions ordered by confidence, then type, category and keyword.
// Entries whose stored category names no taxonomy category only count
// toward orphan frequency.
func (t *Taxonomy) Drift(docs []Document, th Thresholds) []Suggestion {
	if len(docs) == 0 {
		return nil
	}
	th = th.withDefaults()

	names := t.Categories()
	bySlug := make(map[string]string, len(names))
	for _, name := range names {
		bySlug[normalize.Slugify(name)] = name
	}

	known := make(map[string]struct{})
	for _, keywords := range t.categories {
		for k := range keywords {
			known[k] = struct{}{}
		}
	}

	// Entry counts per category, per category keyword, per stem, and per
	// stem and category for stems outside the taxonomy.
	labeled := make(map[string]int)
	support := make(map[string]map[string]int)
	df := make(map[string]int)
	labelsOf := make(map[string]map[string]int)
	for _, d := range docs {
		stems := stemSet(d.Tokens)
		cat := bySlug[normalize.Slugify(d.Category)]
		if cat != "" {
			labeled[cat]++
			for k := range t.categories[cat] {
				if _, ok := stems[k]; ok {
					if support[cat] == nil {
						support[cat] = make(map[string]int)
					}
					support[cat][k]++
				}
			}
		}
		for s := range stems {
			df[s]++
			if _, ok := known[s]; ok || cat == "" {
				continue
			}
			if labelsOf[s] == nil {
				labelsOf[s] = make(map[string]int)
			}
			labelsOf[s][cat]++
		}
	}

	var out []Suggestion
	for _, cat := range names {
		n := labeled[cat]
		if n == 0 {
			continue
		}
		for k := range t.categories[cat] {
			hit := support[cat][k]
			coverage := float64(hit) / float64(n)
			missed := n - hit
			if coverage >= th.MinCoverage || missed < th.MinMissedDocs {
				continue
			}
			out = append(out, Suggestion{
				Type:       DriftLowCoverage,
				Category:   cat,
				Keyword:    k,
				Coverage:   coverage,
				Support:    hit,
				Missed:     missed,
				Confidence: coverageConfidence(coverage, missed, th),
			})
		}
	}

	total := float64(len(docs))
	for s, count := range df {
		if _, ok := known[s]; ok {
			continue
		}
		share := float64(count) / total
		if share < th.MinOrphanDF {
			continue
		}
		cat := dominant(labelsOf[s])
		out = append(out, Suggestion{
			Type:       DriftOrphan,
			Category:   cat,
			Keyword:    s,
			Coverage:   share,
			Support:    count,
			Confidence: orphanConfidence(share, cat != "", th),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Keyword < b.Keyword
	})
	return out
}

func (th Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if th.MinCoverage == 0 {
		th.MinCoverage = def.MinCoverage
	}
	if th.MinMissedDocs == 0 {
		th.MinMissedDocs = def.MinMissedDocs
	}
	if th.MinOrphanDF == 0 {
		th.MinOrphanDF = def.MinOrphanDF
	}
	if th.ConfidenceBias == 0 {
		th.ConfidenceBias = def.ConfidenceBias
	}
	return th
}

func stemSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if s := normalize.Stem(normalize.Lower(tok)); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

// dominant returns the category with the most entries, ties to the smaller name.
func dominant(counts map[string]int) string {
	best, bestN := "", 0
	for cat, n := range counts {
		if n > bestN || (n == bestN && cat < best) {
			best, bestN = cat, n
		}
	}
	return best
}

func coverageConfidence(coverage float64, missed int, th Thresholds) float64 {
	missedPart := 1 - math.Exp(-float64(missed)/float64(th.MinMissedDocs))
	return clamp01(th.ConfidenceBias + 0.5*missedPart + 0.5*(1-coverage))
}

// orphanConfidence grows with document frequency, with a bonus when the
// entries agree on a category.
func orphanConfidence(share float64, hasCategory bool, th Thresholds) float64 {
	c := th.ConfidenceBias + 0.8*(1-math.Exp(-share/th.MinOrphanDF))
	if hasCategory {
		c += 0.1
	}
	return clamp01(c)
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
