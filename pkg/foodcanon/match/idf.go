package match

import "math"

// IDF holds inverse document frequencies of catalog stems. It is built once
// per run and read concurrently afterwards.
type IDF struct {
	docs   int
	df     map[string]int
	unseen float64
}

// BuildIDF counts, for every stem, how many entries contain it.
func BuildIDF(entries []Entry) *IDF {
	idf := &IDF{docs: len(entries), df: make(map[string]int)}
	for _, e := range entries {
		for _, s := range e.Stems {
			idf.df[s]++
		}
	}
	idf.unseen = math.Log(float64(idf.docs+1)) + 1
	return idf
}

// Weight returns ln((N+1)/(df+1)) + 1. Stems absent from the catalog get
// the maximum weight ln(N+1) + 1.
func (i *IDF) Weight(stem string) float64 {
	df, ok := i.df[stem]
	if !ok {
		return i.unseen
	}
	return math.Log(float64(i.docs+1)/float64(df+1)) + 1
}

// DF returns the document frequency of a stem.
func (i *IDF) DF(stem string) int {
	return i.df[stem]
}

// Docs returns the number of entries the weights were built from.
func (i *IDF) Docs() int {
	return i.docs
}

// Total sums the weights of stems.
func (i *IDF) Total(stems []string) float64 {
	total := 0.0
	for _, s := range stems {
		total += i.Weight(s)
	}
	return total
}
