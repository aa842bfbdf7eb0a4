package trend

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"metriscope/domain/report"
	"metriscope/domain/table"
)

const (
	// magnitudeGatePct below which a window shift is not a change point
	magnitudeGatePct = 10.0
	// topChangePointsPerKPI caps candidates kept per series
	topChangePointsPerKPI = 5
	// topChangePoints caps the global ranked list
	topChangePoints = 10
	// minWindow is the smallest usable comparison window per side
	minWindow = 5
)

// DetectChangePoints slides a two-sided window over each KPI's daily
// series and flags dates where the window means shift, ranked globally
// by shift magnitude
func (a *Analyzer) DetectChangePoints(tbl *table.Table, dateCol string, kpis []report.KPI) []report.ChangePoint {
	var all []report.ChangePoint
	for _, kpi := range kpis {
		series := BuildDailySeries(tbl, dateCol, kpi)
		if series == nil {
			continue
		}
		all = append(all, detectInSeries(series)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return math.Abs(all[i].DeltaPct) > math.Abs(all[j].DeltaPct)
	})
	if len(all) > topChangePoints {
		all = all[:topChangePoints]
	}
	return all
}

func detectInSeries(series *Series) []report.ChangePoint {
	w := series.Len() / 4
	if w > 7 {
		w = 7
	}
	if w < minWindow {
		return nil
	}

	var candidates []report.ChangePoint
	for i := w; i <= series.Len()-w; i++ {
		before := series.Values[i-w : i]
		after := series.Values[i : i+w]
		beforeMean, afterMean := mean(before), mean(after)
		if beforeMean == 0 {
			continue
		}
		deltaPct := (afterMean - beforeMean) / beforeMean * 100
		if math.Abs(deltaPct) <= magnitudeGatePct {
			continue
		}
		candidates = append(candidates, report.ChangePoint{
			KPI:        series.KPI,
			Date:       series.Days[i],
			BeforeMean: round4(beforeMean),
			AfterMean:  round4(afterMean),
			DeltaPct:   round2(deltaPct),
			Confidence: changeConfidence(deltaPct, before, after),
		})
	}

	merged := mergeNearby(candidates, series, w)
	sort.SliceStable(merged, func(i, j int) bool {
		return math.Abs(merged[i].DeltaPct) > math.Abs(merged[j].DeltaPct)
	})
	if len(merged) > topChangePointsPerKPI {
		merged = merged[:topChangePointsPerKPI]
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

// changeConfidence grades a shift by magnitude and by how quiet the two
// windows are. Very quiet windows (CV under 0.2) only earn high when the
// shift itself is large; a moderate shift earns medium on magnitude alone
// or when both windows sit in the moderate-noise band.
func changeConfidence(deltaPct float64, before, after []float64) report.Confidence {
	absDelta := math.Abs(deltaPct)
	cvBefore, cvAfter := cv(before), cv(after)
	lowNoise := cvBefore < 0.2 && cvAfter < 0.2
	moderateNoise := cvBefore >= 0.2 && cvBefore < 0.3 && cvAfter >= 0.2 && cvAfter < 0.3

	switch {
	case absDelta > 30 && lowNoise:
		return report.ConfidenceHigh
	case absDelta > 20 || moderateNoise:
		return report.ConfidenceMedium
	}
	return report.ConfidenceLow
}

// cv is the coefficient of variation of a window
func cv(window []float64) float64 {
	m := mean(window)
	if m == 0 {
		return math.Inf(1)
	}
	sd, err := stats.StandardDeviationSample(window)
	if err != nil {
		return math.Inf(1)
	}
	return math.Abs(sd / m)
}

// mergeNearby collapses candidate boundaries closer than one window
// width, keeping the larger shift from each cluster
func mergeNearby(candidates []report.ChangePoint, series *Series, w int) []report.ChangePoint {
	if len(candidates) == 0 {
		return nil
	}
	var merged []report.ChangePoint
	current := candidates[0]
	for _, c := range candidates[1:] {
		if current.Date.DaysUntil(c.Date) < w {
			if math.Abs(c.DeltaPct) > math.Abs(current.DeltaPct) {
				current = c
			}
			continue
		}
		merged = append(merged, current)
		current = c
	}
	merged = append(merged, current)
	return merged
}
