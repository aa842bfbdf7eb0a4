package trend

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"metriscope/domain/report"
	"metriscope/domain/table"
)

const (
	// stabilityThresholdPct below which a change reads as flat
	stabilityThresholdPct = 5.0
	// volatilityThresholdPct on the spread of period-over-period deltas
	volatilityThresholdPct = 20.0
	// topTrends caps the ranked trend list
	topTrends = 10
	// topDailyDeltas caps the spike/drop list
	topDailyDeltas = 3
)

// Analyzer computes per-KPI trends, change points, and daily deltas
type Analyzer struct{}

// NewAnalyzer creates a trend analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// AnalyzeTrends produces one Trend per KPI with at least two daily points,
// ranked by overall change magnitude and capped
func (a *Analyzer) AnalyzeTrends(tbl *table.Table, dateCol string, kpis []report.KPI) []report.Trend {
	var trends []report.Trend
	for _, kpi := range kpis {
		series := BuildDailySeries(tbl, dateCol, kpi)
		if series == nil || series.Len() < 2 {
			continue
		}
		trends = append(trends, a.analyzeOne(series))
	}

	sort.SliceStable(trends, func(i, j int) bool {
		return absOrZero(trends[i].OverallChangePct) > absOrZero(trends[j].OverallChangePct)
	})
	if len(trends) > topTrends {
		trends = trends[:topTrends]
	}
	return trends
}

func (a *Analyzer) analyzeOne(series *Series) report.Trend {
	first, last := series.Values[0], series.Values[series.Len()-1]
	overallPct, overallSign := ChangePct(first, last)

	// Recent window versus the period immediately before it
	n := series.Len() / 4
	if n > 7 {
		n = 7
	}
	var recentPct *float64
	recentSign := overallSign
	if n >= 1 && series.Len() >= 2*n {
		recent := mean(series.Values[series.Len()-n:])
		previous := mean(series.Values[series.Len()-2*n : series.Len()-n])
		recentPct, recentSign = ChangePct(previous, recent)
	} else {
		recentPct = overallPct
	}

	direction := classifyDirection(series.Values, overallPct, recentPct, overallSign, recentSign)
	return report.Trend{
		KPI:              series.KPI,
		Direction:        direction,
		OverallChangePct: roundPtr(overallPct),
		RecentChangePct:  roundPtr(recentPct),
		DeltaSign:        overallSign,
		Description:      describeTrend(series.KPI, direction, overallPct, recentPct),
	}
}

// classifyDirection: volatile when period-over-period deltas are noisy,
// stable below the stability threshold, otherwise the recent movement
// decides with the overall movement as tiebreaker
func classifyDirection(values []float64, overallPct, recentPct *float64, overallSign, recentSign int) report.TrendDirection {
	if volatility(values) > volatilityThresholdPct {
		return report.DirectionVolatile
	}

	overall := absOrZero(overallPct)
	recent := absOrZero(recentPct)
	if overall < stabilityThresholdPct && recent < stabilityThresholdPct && overallPct != nil {
		return report.DirectionStable
	}

	switch {
	case recentPct != nil && *recentPct > stabilityThresholdPct:
		return report.DirectionIncreasing
	case recentPct != nil && *recentPct < -stabilityThresholdPct:
		return report.DirectionDecreasing
	case overallPct != nil && *overallPct > stabilityThresholdPct:
		return report.DirectionIncreasing
	case overallPct != nil && *overallPct < -stabilityThresholdPct:
		return report.DirectionDecreasing
	case overallPct == nil && overallSign > 0:
		// Zero baseline: direction comes from the delta sign
		return report.DirectionIncreasing
	case overallPct == nil && overallSign < 0:
		return report.DirectionDecreasing
	}
	return report.DirectionStable
}

// volatility is the standard deviation of period-over-period percent
// deltas, in percent units
func volatility(values []float64) float64 {
	var deltas []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		deltas = append(deltas, (values[i]-values[i-1])/values[i-1]*100)
	}
	if len(deltas) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(deltas)
	if err != nil {
		return 0
	}
	return sd
}

func describeTrend(kpi string, direction report.TrendDirection, overallPct, recentPct *float64) string {
	switch direction {
	case report.DirectionStable:
		return fmt.Sprintf("%s remained stable (±%.1f%% overall)", kpi, absOrZero(overallPct))
	case report.DirectionVolatile:
		return fmt.Sprintf("%s is highly volatile with frequent fluctuations", kpi)
	case report.DirectionIncreasing:
		if overallPct == nil {
			return fmt.Sprintf("%s grew from a zero baseline", kpi)
		}
		return fmt.Sprintf("%s increased %+.1f%% overall (recent: %+.1f%%)", kpi, *overallPct, valOrZero(recentPct))
	case report.DirectionDecreasing:
		if overallPct == nil {
			return fmt.Sprintf("%s fell from a zero baseline", kpi)
		}
		return fmt.Sprintf("%s decreased %.1f%% overall (recent: %.1f%%)", kpi, *overallPct, valOrZero(recentPct))
	}
	return fmt.Sprintf("%s changed %+.1f%%", kpi, absOrZero(overallPct))
}

// LargestDailyDeltas surfaces the biggest day-over-day spikes and drops
// across all KPI series
func (a *Analyzer) LargestDailyDeltas(tbl *table.Table, dateCol string, kpis []report.KPI) []report.DailyDelta {
	var deltas []report.DailyDelta
	for _, kpi := range kpis {
		series := BuildDailySeries(tbl, dateCol, kpi)
		if series == nil || series.Len() < 2 {
			continue
		}
		for i := 1; i < series.Len(); i++ {
			prev := series.Values[i-1]
			if prev == 0 {
				continue
			}
			pct := (series.Values[i] - prev) / prev * 100
			kind := "spike"
			if pct < 0 {
				kind = "drop"
			}
			deltas = append(deltas, report.DailyDelta{
				KPI:      kpi.Name,
				Date:     series.Days[i],
				Value:    round4(series.Values[i]),
				DeltaPct: round2(pct),
				Kind:     kind,
			})
		}
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return math.Abs(deltas[i].DeltaPct) > math.Abs(deltas[j].DeltaPct)
	})
	if len(deltas) > topDailyDeltas {
		deltas = deltas[:topDailyDeltas]
	}
	return deltas
}

func absOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return math.Abs(*p)
}

func valOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func roundPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := round2(*p)
	return &v
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
