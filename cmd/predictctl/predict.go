package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bd4predict/predict-api/internal/config"
	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/model"
	"github.com/bd4predict/predict-api/internal/service"
)

func predictCmd(logger *logrus.Logger) *cobra.Command {
	settings := service.DefaultModelConfig()
	var modelPath, recordPath string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict from a JSON patient record (object) or records (array)",
		Long: `Reads one patient record, or an array of records, and prints the
prediction results as JSON. Omitted fields take the default record values.
Use --record - to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := model.LoadFile(modelPath)
			if err != nil {
				return err
			}
			predictor, err := service.NewPredictor(logger, pipeline, settings)
			if err != nil {
				return err
			}

			patients, single, err := readRecords(cmd.InOrStdin(), recordPath)
			if err != nil {
				return err
			}

			results, err := predictor.PredictBatch(cmd.Context(), patients)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if single {
				return enc.Encode(results[0])
			}
			return enc.Encode(results)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", config.DefaultModelPath, "Model artifact (JSON or YAML)")
	cmd.Flags().StringVar(&recordPath, "record", "", "Patient record file, - for stdin")
	cmd.Flags().Float64Var(&settings.DeclineMargin, "margin", settings.DeclineMargin, "Decline margin below the baseline score")
	cmd.Flags().IntVar(&settings.Bins, "bins", settings.Bins, "Predictive distribution bins")
	cmd.Flags().StringVar(&settings.EdgePolicy, "edge-policy", settings.EdgePolicy, "Out-of-range lookup policy: clamp or wrap")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

// readRecords decodes a record object or an array of them. single reports
// whether the input was a lone object.
func readRecords(stdin io.Reader, path string) (patients []domain.PatientRecord, single bool, err error) {
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read records: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &patients); err != nil {
			return nil, false, fmt.Errorf("failed to parse records: %w", err)
		}
		if len(patients) == 0 {
			return nil, false, fmt.Errorf("no records in %s", path)
		}
		return patients, false, nil
	}

	patient := domain.DefaultPatientRecord()
	if err := json.Unmarshal(data, &patient); err != nil {
		return nil, false, fmt.Errorf("failed to parse record: %w", err)
	}
	return []domain.PatientRecord{patient}, true, nil
}
