package experiment

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "metriscope/internal/errors"
	"metriscope/domain/report"
	"metriscope/domain/table"
)

const (
	// significanceAlpha for the two-tailed Welch test
	significanceAlpha = 0.05
	// minSamplePerArm below which the comparison is flagged
	minSamplePerArm = 100
	// maxGroupRatio between the larger and smaller arm
	maxGroupRatio = 2.0
	// highVarianceCV on either arm
	highVarianceCV = 1.0
	// minDurationDays of observed data for a trustworthy readout
	minDurationDays = 7
	// targetPower used when planning the required sample size
	targetPower = 0.80
)

// controlTokens identify the baseline arm by variant name
var controlTokens = []string{"control", "baseline", "original", "a"}

// Options tunes the analyzer
type Options struct {
	BootstrapResamples int
	BootstrapWorkers   int
}

// Analyzer runs controlled comparisons across every KPI and test variant
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an experiment analyzer. Zero options fall back to
// 1000 resamples on 4 workers.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.BootstrapResamples <= 0 {
		opts.BootstrapResamples = 1000
	}
	if opts.BootstrapWorkers <= 0 {
		opts.BootstrapWorkers = 4
	}
	return &Analyzer{opts: opts}
}

// Analyze compares each test variant against the control arm for every
// KPI. Per-KPI statistical failures become quality issues rather than
// aborting the run.
func (a *Analyzer) Analyze(ctx context.Context, tbl *table.Table, profile *report.Profile) ([]report.ExperimentResult, []report.QualityIssue) {
	if profile.GroupColumn == "" {
		return nil, nil
	}
	groups := splitByVariant(tbl, profile.GroupColumn)
	if len(groups) < 2 {
		return nil, nil
	}

	control := identifyControl(groups)
	durationDays := 0
	if profile.TimeRange != nil {
		durationDays = profile.TimeRange.Days
	}

	var results []report.ExperimentResult
	var issues []report.QualityIssue
	for _, kpi := range profile.KPIs {
		for _, variant := range sortedVariants(groups) {
			if variant == control {
				continue
			}
			result, err := a.compare(ctx, tbl, profile.GroupColumn, kpi, control, variant, durationDays)
			if err != nil {
				issues = append(issues, report.QualityIssue{
					Kind:        "statistical_failure",
					Column:      kpi.Name,
					Severity:    report.SeverityMedium,
					Description: fmt.Sprintf("comparison of %s for variant %q skipped: %v", kpi.Name, variant, err),
				})
				continue
			}
			if result != nil {
				results = append(results, *result)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Significant != results[j].Significant {
			return results[i].Significant
		}
		return absOrZero(results[i].UpliftPct) > absOrZero(results[j].UpliftPct)
	})
	return results, issues
}

func (a *Analyzer) compare(ctx context.Context, tbl *table.Table, groupCol string, kpi report.KPI, control, variant string, durationDays int) (*report.ExperimentResult, error) {
	controlVals := variantValues(tbl, groupCol, kpi.Name, control)
	testVals := variantValues(tbl, groupCol, kpi.Name, variant)
	if len(controlVals) < 2 || len(testVals) < 2 {
		return nil, nil
	}

	controlMean, err := stats.Mean(controlVals)
	if err != nil {
		return nil, apperrors.Statisticalf("mean of control arm: %v", err)
	}
	testMean, err := stats.Mean(testVals)
	if err != nil {
		return nil, apperrors.Statisticalf("mean of test arm: %v", err)
	}
	controlStd, err := stats.StandardDeviationSample(controlVals)
	if err != nil {
		return nil, apperrors.Statisticalf("stddev of control arm: %v", err)
	}
	testStd, err := stats.StandardDeviationSample(testVals)
	if err != nil {
		return nil, apperrors.Statisticalf("stddev of test arm: %v", err)
	}

	pValue, err := welchPValue(controlMean, testMean, controlStd, testStd, len(controlVals), len(testVals))
	if err != nil {
		return nil, err
	}
	ciLower, ciUpper, err := a.bootstrapCI(ctx, controlVals, testVals)
	if err != nil {
		return nil, err
	}

	var upliftPct *float64
	upliftSign := signOf(testMean - controlMean)
	if controlMean != 0 {
		u := round2((testMean - controlMean) / controlMean * 100)
		upliftPct = &u
	}

	result := &report.ExperimentResult{
		KPI:            kpi.Name,
		ControlVariant: control,
		TestVariant:    variant,
		ControlMean:    round4(controlMean),
		TestMean:       round4(testMean),
		ControlStd:     round4(controlStd),
		TestStd:        round4(testStd),
		ControlCount:   len(controlVals),
		TestCount:      len(testVals),
		UpliftPct:      upliftPct,
		UpliftSign:     upliftSign,
		CILower:        round4(ciLower),
		CIUpper:        round4(ciUpper),
		PValue:         round4(pValue),
		Significant:    pValue < significanceAlpha && !ciContainsZero(ciLower, ciUpper),
		Warnings:       collectWarnings(controlVals, testVals, controlMean, testMean, controlStd, testStd, durationDays),
	}
	result.RequiredPerArm = requiredPerArm(controlMean, testMean, controlStd, testStd)
	return result, nil
}

// welchPValue runs a two-tailed Welch t-test with the
// Welch-Satterthwaite degrees of freedom
func welchPValue(mean1, mean2, std1, std2 float64, n1, n2 int) (float64, error) {
	v1 := std1 * std1 / float64(n1)
	v2 := std2 * std2 / float64(n2)
	se := math.Sqrt(v1 + v2)
	if se == 0 {
		// identical constant arms
		if mean1 == mean2 {
			return 1.0, nil
		}
		return 0.0, nil
	}
	t := (mean2 - mean1) / se

	df := (v1 + v2) * (v1 + v2) / (v1*v1/float64(n1-1) + v2*v2/float64(n2-1))
	if df < 1 || math.IsNaN(df) {
		return 0, apperrors.Statisticalf("degenerate degrees of freedom (%.2f)", df)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - tDist.CDF(math.Abs(t))), nil
}

// requiredPerArm plans the per-arm sample size to detect the observed
// effect at alpha 0.05 with 80% power, using the normal approximation.
// Returns 0 when no effect or no variance is observed.
func requiredPerArm(controlMean, testMean, controlStd, testStd float64) int {
	delta := math.Abs(testMean - controlMean)
	pooledVar := (controlStd*controlStd + testStd*testStd) / 2
	if delta == 0 || pooledVar == 0 {
		return 0
	}
	zAlpha := distuv.UnitNormal.Quantile(1 - significanceAlpha/2)
	zBeta := distuv.UnitNormal.Quantile(targetPower)
	n := 2 * math.Pow(zAlpha+zBeta, 2) * pooledVar / (delta * delta)
	return int(math.Ceil(n))
}

func collectWarnings(controlVals, testVals []float64, controlMean, testMean, controlStd, testStd float64, durationDays int) []report.WarningKind {
	var warnings []report.WarningKind
	if len(controlVals) < minSamplePerArm || len(testVals) < minSamplePerArm {
		warnings = append(warnings, report.WarnSmallSample)
	}
	larger, smaller := float64(len(controlVals)), float64(len(testVals))
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	if smaller > 0 && larger/smaller > maxGroupRatio {
		warnings = append(warnings, report.WarnUnequalGroups)
	}
	if highCV(controlMean, controlStd) || highCV(testMean, testStd) {
		warnings = append(warnings, report.WarnHighVariance)
	}
	if durationDays > 0 && durationDays < minDurationDays {
		warnings = append(warnings, report.WarnShortDuration)
	}
	return warnings
}

func highCV(mean, std float64) bool {
	if mean == 0 {
		return std > 0
	}
	return math.Abs(std/mean) > highVarianceCV
}

// identifyControl picks the arm whose name matches a known baseline
// token, falling back to the alphabetically first variant
func identifyControl(groups map[string][]int) string {
	variants := sortedVariants(groups)
	for _, token := range controlTokens {
		for _, v := range variants {
			if strings.EqualFold(strings.TrimSpace(v), token) {
				return v
			}
		}
	}
	return variants[0]
}

// splitByVariant maps each variant name to its row indexes
func splitByVariant(tbl *table.Table, groupCol string) map[string][]int {
	col, ok := tbl.Column(groupCol)
	if !ok {
		return nil
	}
	groups := make(map[string][]int)
	for r, cell := range col.Cells {
		if cell.IsMissing {
			continue
		}
		groups[cell.Text()] = append(groups[cell.Text()], r)
	}
	return groups
}

func variantValues(tbl *table.Table, groupCol, kpiCol, variant string) []float64 {
	group, ok := tbl.Column(groupCol)
	if !ok {
		return nil
	}
	metric, ok := tbl.Column(kpiCol)
	if !ok {
		return nil
	}
	var vals []float64
	for r := range group.Cells {
		if group.Cells[r].IsMissing || group.Cells[r].Text() != variant {
			continue
		}
		if !metric.Cells[r].IsNumeric() {
			continue
		}
		vals = append(vals, metric.Cells[r].Float())
	}
	return vals
}

func sortedVariants(groups map[string][]int) []string {
	variants := make([]string, 0, len(groups))
	for v := range groups {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	return variants
}

func ciContainsZero(lower, upper float64) bool {
	return lower <= 0 && upper >= 0
}

func signOf(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func absOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return math.Abs(*p)
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
