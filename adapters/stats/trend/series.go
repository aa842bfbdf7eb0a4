package trend

import (
	"sort"

	"metriscope/domain/core"
	"metriscope/domain/report"
	"metriscope/domain/table"
)

// Series is one KPI aggregated to a single ordered value per day
type Series struct {
	KPI    string
	Days   []core.Day
	Values []float64
}

// Len returns the number of daily points
func (s *Series) Len() int { return len(s.Values) }

// BuildDailySeries groups a KPI column by calendar day. Count and money
// KPIs sum within a day; rates and durations average, matching how each
// kind is read on a dashboard.
func BuildDailySeries(tbl *table.Table, dateCol string, kpi report.KPI) *Series {
	dates, ok := tbl.Column(dateCol)
	if !ok {
		return nil
	}
	values, ok := tbl.Column(kpi.Name)
	if !ok {
		return nil
	}

	sums := make(map[core.Day]float64)
	counts := make(map[core.Day]int)
	for r := 0; r < tbl.RowCount(); r++ {
		if !dates.Cells[r].IsDate() || !values.Cells[r].IsNumeric() {
			continue
		}
		day := dates.Cells[r].Day()
		sums[day] += values.Cells[r].Float()
		counts[day]++
	}
	if len(sums) == 0 {
		return nil
	}

	days := make([]core.Day, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	sumKind := kpi.Kind == report.KindCount || kpi.Kind == report.KindMoney
	vals := make([]float64, len(days))
	for i, d := range days {
		if sumKind {
			vals[i] = sums[d]
		} else {
			vals[i] = sums[d] / float64(counts[d])
		}
	}
	return &Series{KPI: kpi.Name, Days: days, Values: vals}
}

// ChangePct computes (last-first)/first as a displayed percentage. When
// the first value is zero it returns a nil percent plus the sign of the
// absolute delta instead of dividing.
func ChangePct(first, last float64) (*float64, int) {
	if first == 0 {
		switch {
		case last > 0:
			return nil, 1
		case last < 0:
			return nil, -1
		}
		return nil, 0
	}
	pct := (last - first) / first * 100
	return &pct, sign(pct)
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
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
