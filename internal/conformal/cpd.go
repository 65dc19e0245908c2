package conformal

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/bd4predict/predict-api/internal/domain"
)

// EdgePolicy decides what the cumulative lookup reports when the threshold
// is nearest to the first bin edge, where the preceding bin does not exist.
type EdgePolicy int

const (
	// EdgeClamp reports the first bin of the ECDF.
	EdgeClamp EdgePolicy = iota
	// EdgeWrap reports the last bin of the ECDF (probability 1). Only used
	// to compare against scores published before the clamp policy existed.
	EdgeWrap
)

// ParseEdgePolicy converts a configuration string into an EdgePolicy.
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return EdgeClamp, nil
	case "wrap":
		return EdgeWrap, nil
	}
	return EdgeClamp, fmt.Errorf("unknown edge policy %q", s)
}

func (p EdgePolicy) String() string {
	if p == EdgeWrap {
		return "wrap"
	}
	return "clamp"
}

// CPD derives conformal predictive distributions from a regressor that
// kept signed conformity scores. Following Vovk et al. (2017), the
// distribution for a new object is the point prediction shifted by every
// calibration residual.
type CPD struct {
	regressor  *ConformalRegressor
	bins       int
	edgePolicy EdgePolicy
}

// Option configures a CPD.
type Option func(*CPD)

// WithBins overrides DefaultBins.
func WithBins(n int) Option {
	return func(c *CPD) {
		if n > 0 {
			c.bins = n
		}
	}
}

// WithEdgePolicy overrides the default EdgeClamp policy.
func WithEdgePolicy(p EdgePolicy) Option {
	return func(c *CPD) { c.edgePolicy = p }
}

// NewCPD wraps r. Symmetrised scores lose the sign of the residual and
// cannot produce a predictive distribution, so they are rejected.
func NewCPD(r *ConformalRegressor, opts ...Option) (*CPD, error) {
	if r == nil {
		return nil, fmt.Errorf("conformal regressor is required")
	}
	if r.Symmetric() {
		return nil, fmt.Errorf("predictive distributions need signed conformity scores, regressor is symmetric")
	}
	c := &CPD{regressor: r, bins: DefaultBins, edgePolicy: EdgeClamp}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Regressor returns the wrapped conformal regressor.
func (c *CPD) Regressor() *ConformalRegressor { return c.regressor }

// Bins returns the histogram resolution.
func (c *CPD) Bins() int { return c.bins }

// EdgePolicy returns the configured first-edge policy.
func (c *CPD) EdgePolicy() EdgePolicy { return c.edgePolicy }

// ScoreCount is the length of every distribution this CPD produces.
func (c *CPD) ScoreCount() int { return len(c.regressor.ConformityScores()) }

// Predict returns point predictions from the base estimator.
func (c *CPD) Predict(X [][]float64) ([]float64, error) {
	return c.regressor.Predict(X)
}

// Distribution returns, for every prediction, the candidate values
// prediction + score_i in conformity score order.
func (c *CPD) Distribution(predictions []float64) ([][]float64, error) {
	scores := c.regressor.ConformityScores()
	if len(scores) == 0 {
		return nil, domain.ErrNotCalibrated
	}
	out := make([][]float64, len(predictions))
	for i, p := range predictions {
		row := make([]float64, len(scores))
		copy(row, scores)
		floats.AddConst(p, row)
		out[i] = row
	}
	return out, nil
}

// Interval returns the lower and upper empirical quantiles of dist.
func (c *CPD) Interval(dist []float64, lower, upper float64) (float64, float64, error) {
	if lower > upper {
		return 0, 0, fmt.Errorf("lower quantile %v exceeds upper quantile %v", lower, upper)
	}
	qs, err := Quantiles(dist, lower, upper)
	if err != nil {
		return 0, 0, err
	}
	return qs[0], qs[1], nil
}

// CumulativeProbability discretises dist, finds the bin edge nearest to
// threshold and returns the ECDF value of the bin preceding that edge.
func (c *CPD) CumulativeProbability(dist []float64, threshold float64) (float64, error) {
	h, err := NewHistogram(dist, c.bins)
	if err != nil {
		return 0, err
	}
	cdf := h.ECDF()
	idx := FindNearest(h.Edges, threshold) - 1
	if idx < 0 {
		if c.edgePolicy == EdgeWrap {
			idx = len(cdf) - 1
		} else {
			idx = 0
		}
	}
	return cdf[idx], nil
}

// ProbabilityBelow returns, per row of X, the probability that the outcome
// falls below the row's threshold. A single threshold applies to every row.
func (c *CPD) ProbabilityBelow(X [][]float64, thresholds []float64) ([]float64, error) {
	if len(thresholds) != 1 && len(thresholds) != len(X) {
		return nil, fmt.Errorf("got %d thresholds for %d rows", len(thresholds), len(X))
	}
	dists, _, err := c.distributions(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(dists))
	for i, dist := range dists {
		t := thresholds[0]
		if len(thresholds) > 1 {
			t = thresholds[i]
		}
		if out[i], err = c.CumulativeProbability(dist, t); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// ProbabilityAtPrediction evaluates each row's distribution at its own
// point prediction.
func (c *CPD) ProbabilityAtPrediction(X [][]float64) ([]float64, error) {
	dists, preds, err := c.distributions(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(dists))
	for i, dist := range dists {
		if out[i], err = c.CumulativeProbability(dist, preds[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// ProbabilityBetween returns the probability mass between lower and upper,
// clipped to [0, 1].
func (c *CPD) ProbabilityBetween(X [][]float64, lower, upper []float64) ([]float64, error) {
	lo, err := c.ProbabilityBelow(X, lower)
	if err != nil {
		return nil, err
	}
	hi, err := c.ProbabilityBelow(X, upper)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(lo))
	for i := range lo {
		p := hi[i] - lo[i]
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		out[i] = p
	}
	return out, nil
}

func (c *CPD) distributions(X [][]float64) ([][]float64, []float64, error) {
	preds, err := c.Predict(X)
	if err != nil {
		return nil, nil, fmt.Errorf("predicting: %w", err)
	}
	dists, err := c.Distribution(preds)
	if err != nil {
		return nil, nil, err
	}
	return dists, preds, nil
}
