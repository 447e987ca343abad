// Package stats computes percentile boundaries over nutrient samples.
package stats

import (
	"errors"
	"math"
	"sort"
)

// DefaultMinSamples is the smallest sample count for which percentiles are
// reported.
const DefaultMinSamples = 3

// ErrNoSamples is returned when Compute is called without samples. Callers
// are expected to drop empty nutrient groups first.
var ErrNoSamples = errors.New("stats: no samples")

// Boundaries summarizes one nutrient across an identity's members.
// Percentile fields are nil when there were too few samples.
type Boundaries struct {
	Median           float64
	P10              *float64
	P25              *float64
	P75              *float64
	P90              *float64
	Min              float64
	Max              float64
	SampleCount      int
	TotalMemberCount int
}

// Compute is ComputeWithMin with DefaultMinSamples.
func Compute(amounts []float64, totalMemberCount int) (Boundaries, error) {
	return ComputeWithMin(amounts, totalMemberCount, DefaultMinSamples)
}

// ComputeWithMin sorts a copy of amounts and derives the boundaries using
// linear interpolation between closest ranks.
func ComputeWithMin(amounts []float64, totalMemberCount, minSamples int) (Boundaries, error) {
	if len(amounts) == 0 {
		return Boundaries{}, ErrNoSamples
	}
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	b := Boundaries{
		Median:           Percentile(sorted, 0.5),
		Min:              sorted[0],
		Max:              sorted[len(sorted)-1],
		SampleCount:      len(sorted),
		TotalMemberCount: totalMemberCount,
	}
	if len(sorted) >= minSamples {
		b.P10 = ptr(Percentile(sorted, 0.10))
		b.P25 = ptr(Percentile(sorted, 0.25))
		b.P75 = ptr(Percentile(sorted, 0.75))
		b.P90 = ptr(Percentile(sorted, 0.90))
	}
	return b, nil
}

// Percentile returns the p-quantile (0..1) of an ascending slice using the
// interpolated rank p*(n-1). It returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func ptr(v float64) *float64 { return &v }
