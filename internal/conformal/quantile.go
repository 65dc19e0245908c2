package conformal

import (
	"fmt"
	"math"
	"sort"
)

// Quantile returns the q-th empirical quantile of values using linear
// interpolation between the closest order statistics.
func Quantile(values []float64, q float64) (float64, error) {
	qs, err := Quantiles(values, q)
	if err != nil {
		return 0, err
	}
	return qs[0], nil
}

// Quantiles evaluates several quantiles against one sort of values.
func Quantiles(values []float64, qs ...float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("quantile of an empty distribution")
	}
	for _, q := range qs {
		if math.IsNaN(q) || q < 0 || q > 1 {
			return nil, fmt.Errorf("quantile %v outside [0, 1]", q)
		}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make([]float64, len(qs))
	last := len(sorted) - 1
	for i, q := range qs {
		h := q * float64(last)
		lo := int(math.Floor(h))
		hi := lo + 1
		if hi > last {
			hi = last
		}
		out[i] = sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
	}
	return out, nil
}
