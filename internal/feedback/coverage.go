package feedback

import (
	"github.com/montanaflynn/stats"
)

// NominalCoverage is the coverage the served 2.5%-97.5% interval targets.
const NominalCoverage = 0.95

// CoverageReport summarises how well served predictions matched observed outcomes.
type CoverageReport struct {
	Count               int     `json:"count"`
	Covered             int     `json:"covered"`
	CoverageRate        float64 `json:"coverage_rate"`
	NominalCoverage     float64 `json:"nominal_coverage"`
	MeanAbsoluteError   float64 `json:"mean_absolute_error"`
	MedianAbsoluteError float64 `json:"median_absolute_error"`
	// BrierScore scores DeclineProbability against the observed decline.
	BrierScore float64 `json:"brier_score"`
}

// Coverage computes the empirical interval coverage and error summaries of outcomes.
func Coverage(outcomes []*Outcome) CoverageReport {
	report := CoverageReport{Count: len(outcomes), NominalCoverage: NominalCoverage}
	if len(outcomes) == 0 {
		return report
	}

	errs := make(stats.Float64Data, 0, len(outcomes))
	brier := make(stats.Float64Data, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Covered() {
			report.Covered++
		}
		errs = append(errs, o.AbsoluteError())

		observed := 0.0
		if o.Declined() {
			observed = 1
		}
		d := o.DeclineProbability - observed
		brier = append(brier, d*d)
	}

	report.CoverageRate = float64(report.Covered) / float64(report.Count)
	report.MeanAbsoluteError, _ = errs.Mean()
	report.MedianAbsoluteError, _ = errs.Median()
	report.BrierScore, _ = brier.Mean()
	return report
}
