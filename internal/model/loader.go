package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bd4predict/predict-api/internal/conformal"
)

// Artifact is the serialized form of a fitted pipeline.
type Artifact struct {
	Metadata      Metadata              `json:"metadata" yaml:"metadata"`
	Preprocessing PreprocessingArtifact `json:"preprocessing" yaml:"preprocessing"`
	Regressor     RegressorArtifact     `json:"regressor" yaml:"regressor"`
}

type PreprocessingArtifact struct {
	Numeric     *NumericArtifact     `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Categorical *CategoricalArtifact `json:"categorical,omitempty" yaml:"categorical,omitempty"`
}

type NumericArtifact struct {
	Features []string `json:"features" yaml:"features"`
	Imputer  struct {
		Strategy   string    `json:"strategy" yaml:"strategy"`
		Statistics []float64 `json:"statistics" yaml:"statistics"`
	} `json:"imputer" yaml:"imputer"`
	Scaler *ScalerArtifact `json:"scaler,omitempty" yaml:"scaler,omitempty"`
}

type ScalerArtifact struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

type CategoricalArtifact struct {
	Features []string `json:"features" yaml:"features"`
	Imputer  struct {
		Strategy   string   `json:"strategy" yaml:"strategy"`
		FillValues []string `json:"fill_values" yaml:"fill_values"`
	} `json:"imputer" yaml:"imputer"`
	OneHot struct {
		Categories    [][]string `json:"categories" yaml:"categories"`
		HandleUnknown string     `json:"handle_unknown" yaml:"handle_unknown"`
	} `json:"onehot" yaml:"onehot"`
}

type RegressorArtifact struct {
	Estimator struct {
		Type         string    `json:"type" yaml:"type"`
		Intercept    float64   `json:"intercept" yaml:"intercept"`
		Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	} `json:"estimator" yaml:"estimator"`
	// Null entries decode as NaN and are dropped when scores are read.
	ConformityScores []*float64 `json:"conformity_scores" yaml:"conformity_scores"`
	Symmetric        bool       `json:"symmetric" yaml:"symmetric"`
}

// LoadFile reads a pipeline artifact. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var art Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &art)
	default:
		err = json.Unmarshal(data, &art)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	return art.Build()
}

// Build validates the artifact and assembles the pipeline.
func (a *Artifact) Build() (*Pipeline, error) {
	pre := &ColumnTransformer{}

	if n := a.Preprocessing.Numeric; n != nil {
		branch, err := n.build()
		if err != nil {
			return nil, err
		}
		pre.Branches = append(pre.Branches, branch)
	}
	if c := a.Preprocessing.Categorical; c != nil {
		branch, err := c.build()
		if err != nil {
			return nil, err
		}
		pre.Branches = append(pre.Branches, branch)
	}
	if len(pre.Branches) == 0 {
		return nil, fmt.Errorf("artifact has no preprocessing branches")
	}

	switch strings.ToLower(a.Regressor.Estimator.Type) {
	case "", "linear", "lasso", "ridge", "elasticnet":
	default:
		return nil, fmt.Errorf("unsupported estimator type %q", a.Regressor.Estimator.Type)
	}
	est := conformal.NewLinearRegressor(a.Regressor.Estimator.Intercept, a.Regressor.Estimator.Coefficients)

	scores := make([]float64, len(a.Regressor.ConformityScores))
	for i, s := range a.Regressor.ConformityScores {
		if s == nil {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = *s
	}
	reg := conformal.NewConformalRegressor(est, scores, a.Regressor.Symmetric)

	return NewPipeline(a.Metadata, pre, reg)
}

func (n *NumericArtifact) build() (*NumericBranch, error) {
	k := len(n.Features)
	if len(n.Imputer.Statistics) != k {
		return nil, fmt.Errorf("numeric imputer has %d statistics for %d features", len(n.Imputer.Statistics), k)
	}
	b := &NumericBranch{
		Features:   clone(n.Features),
		Strategy:   n.Imputer.Strategy,
		Statistics: append([]float64(nil), n.Imputer.Statistics...),
	}
	if n.Scaler != nil {
		if len(n.Scaler.Mean) != k || len(n.Scaler.Scale) != k {
			return nil, fmt.Errorf("numeric scaler dimensions do not match %d features", k)
		}
		b.Mean = append([]float64(nil), n.Scaler.Mean...)
		b.Scale = append([]float64(nil), n.Scaler.Scale...)
		b.Invertible = true
	}
	return b, nil
}

func (c *CategoricalArtifact) build() (*CategoricalBranch, error) {
	k := len(c.Features)
	if len(c.Imputer.FillValues) != k {
		return nil, fmt.Errorf("categorical imputer has %d fill values for %d features", len(c.Imputer.FillValues), k)
	}
	if len(c.OneHot.Categories) != k {
		return nil, fmt.Errorf("one-hot encoder has %d category lists for %d features", len(c.OneHot.Categories), k)
	}
	handle := c.OneHot.HandleUnknown
	if handle == "" {
		handle = "ignore"
	}
	if handle != "ignore" && handle != "error" {
		return nil, fmt.Errorf("unsupported handle_unknown %q", handle)
	}
	cats := make([][]string, k)
	for i := range c.OneHot.Categories {
		cats[i] = clone(c.OneHot.Categories[i])
	}
	return &CategoricalBranch{
		Features:      clone(c.Features),
		Strategy:      c.Imputer.Strategy,
		FillValues:    clone(c.Imputer.FillValues),
		Categories:    cats,
		HandleUnknown: handle,
	}, nil
}
