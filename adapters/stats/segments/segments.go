package segments

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"metriscope/domain/core"
	"metriscope/domain/report"
	"metriscope/domain/table"
)

const (
	// anomalyZScore beyond which a segment mean is flagged
	anomalyZScore = 2.0
	// minSegmentSize below which a segment is never flagged anomalous
	minSegmentSize = 10
	// topContributions caps the ranked list across all columns and KPIs
	topContributions = 20
)

// Analyzer decomposes KPI movement across categorical segment columns
type Analyzer struct{}

// NewAnalyzer creates a segment analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze attributes each primary KPI's change to segment values. With a
// date column the table splits at the median date and each segment's
// before/after delta is weighted by its row share; without one, segments
// are compared statically against the overall mean.
func (a *Analyzer) Analyze(tbl *table.Table, profile *report.Profile) []report.SegmentContribution {
	kpis := primaryOrAll(profile.KPIs)
	if len(kpis) == 0 || len(profile.SegmentColumns) == 0 {
		return nil
	}

	var all []report.SegmentContribution
	for _, segCol := range profile.SegmentColumns {
		for _, kpi := range kpis {
			all = append(all, a.decompose(tbl, profile.DateColumn, segCol, kpi)...)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return math.Abs(all[i].ContributionPct) > math.Abs(all[j].ContributionPct)
	})
	if len(all) > topContributions {
		all = all[:topContributions]
	}
	return all
}

func (a *Analyzer) decompose(tbl *table.Table, dateCol, segCol string, kpi report.KPI) []report.SegmentContribution {
	seg, ok := tbl.Column(segCol)
	if !ok {
		return nil
	}
	metric, ok := tbl.Column(kpi.Name)
	if !ok {
		return nil
	}

	split, splitOK := medianDay(tbl, dateCol)
	if dateCol != "" && splitOK {
		if contribs := a.temporal(tbl, dateCol, seg, metric, kpi.Name, split); contribs != nil {
			return contribs
		}
	}
	return a.static(seg, metric, kpi.Name)
}

// temporal weights each segment's before/after mean delta by its row
// share and expresses it as a percentage of the overall delta. Falls
// back to nil when the overall level did not move.
func (a *Analyzer) temporal(tbl *table.Table, dateCol string, seg, metric *table.Column, kpiName string, split core.Day) []report.SegmentContribution {
	dates, ok := tbl.Column(dateCol)
	if !ok {
		return nil
	}

	var beforeAll, afterAll []float64
	beforeBySeg := make(map[string][]float64)
	afterBySeg := make(map[string][]float64)
	sizeBySeg := make(map[string]int)
	total := 0

	for r := range seg.Cells {
		if seg.Cells[r].IsMissing || !metric.Cells[r].IsNumeric() || !dates.Cells[r].IsDate() {
			continue
		}
		value := metric.Cells[r].Float()
		key := seg.Cells[r].Text()
		sizeBySeg[key]++
		total++
		if dates.Cells[r].Day().Before(split) {
			beforeAll = append(beforeAll, value)
			beforeBySeg[key] = append(beforeBySeg[key], value)
		} else {
			afterAll = append(afterAll, value)
			afterBySeg[key] = append(afterBySeg[key], value)
		}
	}
	if len(beforeAll) == 0 || len(afterAll) == 0 || total == 0 {
		return nil
	}
	overallChange := mean(afterAll) - mean(beforeAll)
	if overallChange == 0 {
		return nil
	}

	var contribs []report.SegmentContribution
	for key, size := range sizeBySeg {
		before, after := beforeBySeg[key], afterBySeg[key]
		if len(before) == 0 || len(after) == 0 {
			continue
		}
		segChange := mean(after) - mean(before)
		weight := float64(size) / float64(total)
		abs := segChange * weight
		contribs = append(contribs, report.SegmentContribution{
			SegmentColumn:   seg.Name,
			SegmentValue:    key,
			KPI:             kpiName,
			ContributionAbs: round4(abs),
			ContributionPct: round2(abs / math.Abs(overallChange) * 100),
			SegmentMean:     round4(mean(after)),
			SegmentSize:     size,
			Direction:       directionOf(segChange),
		})
	}
	return flagAnomalies(contribs)
}

// static scores segments by distance from the overall mean, weighted by
// row share
func (a *Analyzer) static(seg, metric *table.Column, kpiName string) []report.SegmentContribution {
	bySeg := make(map[string][]float64)
	var allVals []float64
	for r := range seg.Cells {
		if seg.Cells[r].IsMissing || !metric.Cells[r].IsNumeric() {
			continue
		}
		key := seg.Cells[r].Text()
		bySeg[key] = append(bySeg[key], metric.Cells[r].Float())
		allVals = append(allVals, metric.Cells[r].Float())
	}
	if len(allVals) == 0 {
		return nil
	}
	overallMean := mean(allVals)

	var contribs []report.SegmentContribution
	for key, vals := range bySeg {
		segMean := mean(vals)
		weight := float64(len(vals)) / float64(len(allVals))
		abs := (segMean - overallMean) * weight
		pct := 0.0
		if overallMean != 0 {
			pct = abs / math.Abs(overallMean) * 100
		}
		contribs = append(contribs, report.SegmentContribution{
			SegmentColumn:   seg.Name,
			SegmentValue:    key,
			KPI:             kpiName,
			ContributionAbs: round4(abs),
			ContributionPct: round2(pct),
			SegmentMean:     round4(segMean),
			SegmentSize:     len(vals),
			Direction:       directionOf(segMean - overallMean),
		})
	}
	return flagAnomalies(contribs)
}

// flagAnomalies z-scores segment means against each other and marks
// outliers of sufficient size
func flagAnomalies(contribs []report.SegmentContribution) []report.SegmentContribution {
	if len(contribs) < 3 {
		return contribs
	}
	means := make([]float64, len(contribs))
	for i, c := range contribs {
		means[i] = c.SegmentMean
	}
	center := mean(means)
	sd, err := stats.StandardDeviationSample(means)
	if err != nil || sd == 0 {
		return contribs
	}
	for i := range contribs {
		z := (contribs[i].SegmentMean - center) / sd
		contribs[i].ZScore = round2(z)
		contribs[i].Anomalous = math.Abs(z) > anomalyZScore && contribs[i].SegmentSize >= minSegmentSize
	}
	return contribs
}

// medianDay finds the middle date of the table's date column
func medianDay(tbl *table.Table, dateCol string) (core.Day, bool) {
	if dateCol == "" {
		return core.Day{}, false
	}
	dates, ok := tbl.Column(dateCol)
	if !ok {
		return core.Day{}, false
	}
	var days []core.Day
	for _, cell := range dates.Cells {
		if cell.IsDate() {
			days = append(days, cell.Day())
		}
	}
	if len(days) < 2 {
		return core.Day{}, false
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days[len(days)/2], true
}

func primaryOrAll(kpis []report.KPI) []report.KPI {
	var primary []report.KPI
	for _, k := range kpis {
		if k.IsPrimary {
			primary = append(primary, k)
		}
	}
	if len(primary) > 0 {
		return primary
	}
	return kpis
}

func directionOf(delta float64) string {
	if delta < 0 {
		return "down"
	}
	return "up"
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
