package match

import "sort"

// CandidateStrategy chooses which entries an ingredient is scored against.
// Index builds a fresh index per run and keeps no state of its own, so one
// strategy can serve concurrent runs.
type CandidateStrategy interface {
	Name() string
	Index(entries []Entry) CandidateIndex
}

// CandidateIndex returns the entry indices an ingredient is scored against,
// sorted ascending. It is read-only and safe for concurrent use.
type CandidateIndex interface {
	Candidates(ing Ingredient) []int
}

// CrossProduct scores every ingredient against every entry.
type CrossProduct struct{}

// NewCrossProduct creates the brute-force strategy.
func NewCrossProduct() *CrossProduct { return &CrossProduct{} }

func (c *CrossProduct) Name() string { return "cross_product" }

func (c *CrossProduct) Index(entries []Entry) CandidateIndex {
	all := make(allEntries, len(entries))
	for i := range entries {
		all[i] = i
	}
	return all
}

type allEntries []int

// Candidates returns all entry indices. Callers must not modify the slice.
func (a allEntries) Candidates(Ingredient) []int { return a }

// TokenBlocking only scores entries that share at least one stem with the
// ingredient. Entries sharing no stem can still earn category and synonym
// points under CrossProduct, so weak winners may differ between the two.
type TokenBlocking struct{}

// NewTokenBlocking creates the inverted-index strategy.
func NewTokenBlocking() *TokenBlocking { return &TokenBlocking{} }

func (t *TokenBlocking) Name() string { return "token_blocking" }

func (t *TokenBlocking) Index(entries []Entry) CandidateIndex {
	byStem := make(stemIndex)
	for i, e := range entries {
		for _, s := range e.Stems {
			byStem[s] = append(byStem[s], i)
		}
	}
	return byStem
}

// stemIndex maps a stem to the entries containing it.
type stemIndex map[string][]int

func (idx stemIndex) Candidates(ing Ingredient) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range ing.Stems {
		for _, i := range idx[s] {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
