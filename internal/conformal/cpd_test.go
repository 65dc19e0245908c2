package conformal

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd4predict/predict-api/internal/domain"
)

// constantRegressor predicts the same value for every row.
type constantRegressor struct {
	value float64
}

func (c constantRegressor) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = c.value
	}
	return out, nil
}

func newTestCPD(t *testing.T, pred float64, scores []float64, opts ...Option) *CPD {
	t.Helper()
	cpd, err := NewCPD(NewConformalRegressor(constantRegressor{value: pred}, scores, false), opts...)
	require.NoError(t, err)
	return cpd
}

func TestLinearRegressor_Predict(t *testing.T) {
	reg := NewLinearRegressor(1, []float64{2, 3})

	preds, err := reg.Predict([][]float64{{1, 1}, {0, 2}})

	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7}, preds)
}

func TestLinearRegressor_DimensionMismatch(t *testing.T) {
	reg := NewLinearRegressor(0, []float64{1, 1})

	_, err := reg.Predict([][]float64{{1}})

	assert.Error(t, err)
}

func TestConformalRegressor_DropsNaNScores(t *testing.T) {
	reg := NewConformalRegressor(constantRegressor{}, []float64{1, math.NaN(), -2}, false)

	assert.Equal(t, []float64{1, -2}, reg.ConformityScores())
}

func TestNewCPD_RejectsSymmetricScores(t *testing.T) {
	_, err := NewCPD(NewConformalRegressor(constantRegressor{}, []float64{1, 2}, true))
	assert.Error(t, err)

	_, err = NewCPD(nil)
	assert.Error(t, err)
}

func TestCPD_Distribution(t *testing.T) {
	cpd := newTestCPD(t, 0, []float64{-1, 0, 2, math.NaN()})

	dists, err := cpd.Distribution([]float64{10, 20})

	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Equal(t, []float64{9, 10, 12}, dists[0])
	assert.Equal(t, []float64{19, 20, 22}, dists[1])
	assert.Equal(t, 3, cpd.ScoreCount())
}

func TestCPD_Distribution_NotCalibrated(t *testing.T) {
	cpd := newTestCPD(t, 0, []float64{math.NaN()})

	_, err := cpd.Distribution([]float64{1})

	assert.True(t, errors.Is(err, domain.ErrNotCalibrated))
}

func TestCPD_Interval(t *testing.T) {
	cpd := newTestCPD(t, 0, []float64{0})

	lo, hi, err := cpd.Interval([]float64{5, 1, 4, 2, 3}, 0.025, 0.975)

	require.NoError(t, err)
	assert.InDelta(t, 1.1, lo, 1e-12)
	assert.InDelta(t, 4.9, hi, 1e-12)

	_, _, err = cpd.Interval([]float64{1, 2}, 0.9, 0.1)
	assert.Error(t, err)
}

func TestCPD_CumulativeProbability(t *testing.T) {
	dist := []float64{0, 1, 2, 3, 4}

	tests := []struct {
		name      string
		threshold float64
		policy    EdgePolicy
		expected  float64
	}{
		{name: "interior edge", threshold: 2, expected: 0.4},
		{name: "threshold on bin edge", threshold: 3, expected: 0.6},
		{name: "between edges rounds to nearest", threshold: 2.4, expected: 0.4},
		{name: "tie resolves to lower edge", threshold: 2.5, expected: 0.4},
		{name: "above distribution", threshold: 100, expected: 1},
		{name: "below distribution clamps", threshold: -100, expected: 0.2},
		{name: "below distribution wraps", threshold: -100, policy: EdgeWrap, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpd := newTestCPD(t, 0, []float64{0}, WithBins(4), WithEdgePolicy(tt.policy))

			p, err := cpd.CumulativeProbability(dist, tt.threshold)

			require.NoError(t, err)
			assert.InDelta(t, tt.expected, p, 1e-12)
		})
	}
}

func TestCPD_ProbabilityBelow(t *testing.T) {
	cpd := newTestCPD(t, 2, []float64{-2, -1, 0, 1, 2}, WithBins(4))

	probs, err := cpd.ProbabilityBelow([][]float64{{0}, {0}}, []float64{2, 3})

	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.6}, probs, 1e-12)

	broadcast, err := cpd.ProbabilityBelow([][]float64{{0}, {0}}, []float64{2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.4}, broadcast, 1e-12)

	_, err = cpd.ProbabilityBelow([][]float64{{0}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestCPD_ProbabilityAtPrediction(t *testing.T) {
	cpd := newTestCPD(t, 2, []float64{-2, -1, 0, 1, 2}, WithBins(4))

	probs, err := cpd.ProbabilityAtPrediction([][]float64{{0}})

	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4}, probs, 1e-12)
}

func TestCPD_ProbabilityBetween(t *testing.T) {
	cpd := newTestCPD(t, 2, []float64{-2, -1, 0, 1, 2}, WithBins(4))

	probs, err := cpd.ProbabilityBetween([][]float64{{0}}, []float64{1}, []float64{3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4}, probs, 1e-12)

	inverted, err := cpd.ProbabilityBetween([][]float64{{0}}, []float64{3}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, inverted)
}

func TestCPD_ProbabilityIsBounded(t *testing.T) {
	scores := []float64{-31.5, -12, -7.25, -3, -0.5, 0, 1, 2.5, 6, 14, 22}
	cpd := newTestCPD(t, 70, scores)

	for _, policy := range []EdgePolicy{EdgeClamp, EdgeWrap} {
		cpd.edgePolicy = policy
		for _, threshold := range []float64{-1e9, -50, 0, 38.5, 55, 70, 70.0001, 92, 1e9} {
			probs, err := cpd.ProbabilityBelow([][]float64{{0}}, []float64{threshold})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, probs[0], 0.0)
			assert.LessOrEqual(t, probs[0], 1.0)
		}
	}
}

func TestCPD_Deterministic(t *testing.T) {
	scores := []float64{-4, -2.2, 0.3, 1.7, 5, 9.5}
	cpd := newTestCPD(t, 50, scores)

	first, err := cpd.ProbabilityBelow([][]float64{{0}}, []float64{48})
	require.NoError(t, err)
	second, err := cpd.ProbabilityBelow([][]float64{{0}}, []float64{48})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseEdgePolicy(t *testing.T) {
	p, err := ParseEdgePolicy("")
	require.NoError(t, err)
	assert.Equal(t, EdgeClamp, p)

	p, err = ParseEdgePolicy("WRAP")
	require.NoError(t, err)
	assert.Equal(t, EdgeWrap, p)
	assert.Equal(t, "wrap", p.String())

	_, err = ParseEdgePolicy("nearest")
	assert.Error(t, err)
}
