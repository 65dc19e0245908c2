package conformal

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the number of equal-width bins used to discretise a
// predictive distribution.
const DefaultBins = 100

// Histogram is an equal-width histogram. Edges has one more element than
// Counts; every bin is half open except the last, which includes its upper
// edge.
type Histogram struct {
	Counts []float64
	Edges  []float64
}

// NewHistogram bins values into the given number of equal-width bins over
// [min, max]. A degenerate range is widened by 0.5 on each side.
func NewHistogram(values []float64, bins int) (*Histogram, error) {
	if bins < 1 {
		return nil, fmt.Errorf("histogram needs at least one bin, got %d", bins)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("histogram of an empty distribution")
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, fmt.Errorf("histogram range [%v, %v] is not finite", lo, hi)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	edges[bins] = hi

	// stat.Histogram treats the last divider as exclusive.
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	counts := stat.Histogram(nil, dividers, sorted, nil)
	return &Histogram{Counts: counts, Edges: edges}, nil
}

// ECDF returns the cumulative bin counts normalised to [0, 1].
func (h *Histogram) ECDF() []float64 {
	cdf := floats.CumSum(make([]float64, len(h.Counts)), h.Counts)
	total := cdf[len(cdf)-1]
	if total > 0 {
		floats.Scale(1/total, cdf)
	}
	return cdf
}

// FindNearest returns the index of the element of edges closest to value.
// Ties resolve to the lowest index.
func FindNearest(edges []float64, value float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, e := range edges {
		if d := math.Abs(e - value); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
