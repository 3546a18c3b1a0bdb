// Package stats computes per-cohort peer aggregates: mean, median,
// and nearest-rank percentiles over member activity metrics.
package stats

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank percentile of sorted ascending
// values: index ceil(p/100 x N) - 1, clamped to [0, N-1].
// Returns 0 for an empty slice.
func Percentile(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(p)/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Aggregate holds the summary statistics for one metric.
type Aggregate struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// aggregate summarizes values; the input slice is sorted in place.
func aggregate(values []float64) Aggregate {
	if len(values) == 0 {
		return Aggregate{}
	}
	sort.Float64s(values)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return Aggregate{
		Mean:   sum / float64(len(values)),
		Median: Percentile(values, 50),
		P75:    Percentile(values, 75),
		P90:    Percentile(values, 90),
	}
}
