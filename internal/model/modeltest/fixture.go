// Package modeltest provides a small fitted pipeline over the full request
// schema for tests in other packages.
package modeltest

import (
	"math"
	"strings"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/model"
)

// Fixture constants. With the default payload every quality-of-life score
// is imputed to QoLMedian, the prediction equals Intercept and the
// distribution spans Intercept-20 to Intercept+18.
const (
	Intercept       = 70.0
	QoLMedian       = 60.0
	QoLScale        = 10.0
	BaselineWeight  = 5.0
	ScoreCount      = 20
	ModelName       = "bd4predict-ghs-12m"
	ModelVersion    = "test-1"
	ModelTargetName = "hn4_dv_c30_ghs"
)

// Categories used by the categorical branch.
var Categories = map[string][]string{
	"hn1_icd_group_conf":       {"1 - oral cavity", "2 - oropharynx", "3 - larynx", "4 - other"},
	"hn1_a5_ay_marital_status": {"1 - single", "2 - divorced", "3 - widowed", "4 - married"},
	"hn1_nb9a_cb_hpv_status":   {"negative", "positive", "not obtained"},
	"hn1_a8_ay_tobacco":        {"1 - current", "2 - former", "3 - never"},
}

// Scores returns the fixture conformity scores: -20, -18, ... 18 followed
// by one NaN that must be ignored.
func Scores() []float64 {
	scores := make([]float64, 0, ScoreCount+1)
	for i := 0; i < ScoreCount; i++ {
		scores = append(scores, float64(-20+2*i))
	}
	return append(scores, math.NaN())
}

// Artifact builds the serialized form of the fixture pipeline.
func Artifact() *model.Artifact {
	def := domain.DefaultPatientRecord()
	rec := def.ToRecord()

	num := &model.NumericArtifact{}
	cat := &model.CategoricalArtifact{}
	var coef []float64

	for _, name := range def.FieldNames() {
		v, _ := rec.Get(name)
		if v.Kind == domain.Categorical {
			cat.Features = append(cat.Features, name)
			cat.Imputer.FillValues = append(cat.Imputer.FillValues, Categories[name][0])
			cat.OneHot.Categories = append(cat.OneHot.Categories, Categories[name])
			continue
		}
		num.Features = append(num.Features, name)
		stat, scale := 1.0, 1.0
		switch {
		case strings.HasPrefix(name, "hn3_"):
			stat, scale = QoLMedian, QoLScale
		case name == "hn1_dv_age_cons":
			stat, scale = 60, 10
		case name == "hn2_chemotherapy":
			// constant column during fitting
			stat, scale = 0, 0
		}
		num.Imputer.Statistics = append(num.Imputer.Statistics, stat)
		if num.Scaler == nil {
			num.Scaler = &model.ScalerArtifact{}
		}
		num.Scaler.Mean = append(num.Scaler.Mean, stat)
		num.Scaler.Scale = append(num.Scaler.Scale, scale)

		w := 0.0
		if name == domain.BaselineScoreField {
			w = BaselineWeight
		}
		coef = append(coef, w)
	}
	num.Imputer.Strategy = "median"
	cat.Imputer.Strategy = "most_frequent"
	cat.OneHot.HandleUnknown = "ignore"
	for _, cats := range cat.OneHot.Categories {
		coef = append(coef, make([]float64, len(cats))...)
	}

	art := &model.Artifact{
		Metadata: model.Metadata{
			Name:    ModelName,
			Version: ModelVersion,
			Target:  ModelTargetName,
		},
	}
	art.Preprocessing.Numeric = num
	art.Preprocessing.Categorical = cat
	art.Regressor.Estimator.Type = "lasso"
	art.Regressor.Estimator.Intercept = Intercept
	art.Regressor.Estimator.Coefficients = coef
	for _, s := range Scores() {
		if math.IsNaN(s) {
			art.Regressor.ConformityScores = append(art.Regressor.ConformityScores, nil)
			continue
		}
		art.Regressor.ConformityScores = append(art.Regressor.ConformityScores, &s)
	}
	return art
}

// Pipeline builds the fixture pipeline. It panics on error since the
// fixture is static.
func Pipeline() *model.Pipeline {
	p, err := Artifact().Build()
	if err != nil {
		panic(err)
	}
	return p
}
