package main

import (
	"encoding/json"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/bd4predict/predict-api/internal/config"
	"github.com/bd4predict/predict-api/internal/conformal"
	"github.com/bd4predict/predict-api/internal/model"
)

// ModelReport is printed by model inspect.
type ModelReport struct {
	Metadata           model.Metadata `json:"metadata"`
	InputFeatures      int            `json:"input_features"`
	OutputFeatures     int            `json:"output_features"`
	Intercept          float64        `json:"intercept"`
	NonZeroWeights     int            `json:"non_zero_weights"`
	ScoreCount         int            `json:"score_count"`
	ScoreMin           float64        `json:"score_min"`
	ScoreMedian        float64        `json:"score_median"`
	ScoreMax           float64        `json:"score_max"`
	SymmetricIntervals bool           `json:"symmetric"`
}

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model artifact tools",
	}

	var modelPath string
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Load a model artifact and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := model.LoadFile(modelPath)
			if err != nil {
				return err
			}
			report, err := inspectPipeline(pipeline)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	inspect.Flags().StringVar(&modelPath, "model", config.DefaultModelPath, "Model artifact (JSON or YAML)")
	cmd.AddCommand(inspect)
	return cmd
}

func inspectPipeline(p *model.Pipeline) (*ModelReport, error) {
	reg := p.Regressor
	report := &ModelReport{
		Metadata:           p.Metadata,
		InputFeatures:      len(p.Preprocessor.FeatureNamesIn()),
		OutputFeatures:     len(p.FeatureNames()),
		SymmetricIntervals: reg.Symmetric(),
	}
	if lin, ok := reg.Estimator().(*conformal.LinearRegressor); ok {
		report.Intercept = lin.Intercept
		for _, w := range lin.Coefficients {
			if w != 0 {
				report.NonZeroWeights++
			}
		}
	}

	scores := stats.Float64Data(reg.ConformityScores())
	report.ScoreCount = scores.Len()
	if report.ScoreCount == 0 {
		return report, nil
	}
	var err error
	if report.ScoreMin, err = scores.Min(); err != nil {
		return nil, err
	}
	if report.ScoreMedian, err = scores.Median(); err != nil {
		return nil, err
	}
	if report.ScoreMax, err = scores.Max(); err != nil {
		return nil, err
	}
	return report, nil
}
