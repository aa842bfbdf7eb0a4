package profiling

import (
	"math"
	"sort"
	"strings"

	"metriscope/domain/report"
	"metriscope/domain/table"
)

// Metric vocabulary per KPI kind, checked in priority order
var (
	rateTokens     = []string{"rate", "conversion", "retention", "pct", "percent", "ratio", "ctr", "cvr"}
	moneyTokens    = []string{"revenue", "arr", "mrr", "ltv", "arpu", "arpdau", "arppu", "gmv", "price", "cost", "spend"}
	durationTokens = []string{"duration", "latency", "ttfb", "load_time", "session_length", "time_spent"}
	countTokens    = []string{"count", "users", "dau", "mau", "wau", "sessions", "visits", "impressions", "clicks", "events", "orders"}
	primaryTokens  = []string{"revenue", "conversion", "retention", "dau", "engagement", "gmv"}
)

// maxPrimaryKPIs caps is_primary flags to keep the report's headline from
// flooding with false primaries
const maxPrimaryKPIs = 5

// DetectKPIs flags business-meaningful numeric columns. A column qualifies
// by metric vocabulary or by value-shape signature; the classification is
// a prioritized rule list so each decision is inspectable.
func DetectKPIs(tbl *table.Table, profiles []report.ColumnProfile, dateCol, groupCol string) []report.KPI {
	var kpis []report.KPI

	for _, cp := range profiles {
		if cp.InferredType != table.TypeNumeric {
			continue
		}
		if cp.Name == dateCol || cp.Name == groupCol {
			continue
		}
		if cp.Name == "id" || strings.HasSuffix(cp.Name, "_id") {
			continue
		}

		kind, unit, matched := classifyKind(cp)
		if !matched {
			continue
		}

		kpi := report.KPI{
			Name:      cp.Name,
			Kind:      kind,
			Unit:      unit,
			IsPrimary: isPrimaryName(cp.Name),
		}
		if kind == report.KindRate {
			kpi.Numerator, kpi.Denominator = findRatePair(cp.Name, profiles)
		}
		kpis = append(kpis, kpi)
	}

	// Primary flags first, then name, and cap the primary count
	sort.SliceStable(kpis, func(i, j int) bool {
		if kpis[i].IsPrimary != kpis[j].IsPrimary {
			return kpis[i].IsPrimary
		}
		return kpis[i].Name < kpis[j].Name
	})
	primaries := 0
	for i := range kpis {
		if kpis[i].IsPrimary {
			primaries++
			if primaries > maxPrimaryKPIs {
				kpis[i].IsPrimary = false
			}
		}
	}
	return kpis
}

// classifyKind applies the lexicon first, then value-shape signatures:
// bounded [0,1] or [0,100] looks like a rate, non-negative integers look
// like a count. Columns that match neither are not KPIs.
func classifyKind(cp report.ColumnProfile) (report.KPIKind, string, bool) {
	name := strings.ToLower(cp.Name)

	switch {
	case hasToken(name, rateTokens):
		return report.KindRate, "percent", true
	case hasToken(name, moneyTokens):
		return report.KindMoney, "currency", true
	case hasToken(name, durationTokens):
		return report.KindDuration, "seconds", true
	case hasToken(name, countTokens):
		return report.KindCount, "count", true
	}

	if cp.Min == nil || cp.Max == nil {
		return "", "", false
	}
	switch {
	case *cp.Min >= 0 && *cp.Max <= 1:
		return report.KindRate, "fraction", true
	case *cp.Min >= 0 && *cp.Max <= 100 && cp.Mean != nil && *cp.Mean <= 100:
		// Could be a percent-shaped rate only when values are fractional;
		// whole numbers up to 100 are more likely small counts
		if cp.Median != nil && *cp.Median != math.Trunc(*cp.Median) {
			return report.KindRate, "percent", true
		}
		return report.KindCount, "count", true
	case *cp.Min >= 0 && wholeNumbers(cp):
		return report.KindCount, "count", true
	}
	return "", "", false
}

func wholeNumbers(cp report.ColumnProfile) bool {
	for _, v := range []*float64{cp.Min, cp.Max, cp.Median} {
		if v != nil && *v != math.Trunc(*v) {
			return false
		}
	}
	return true
}

func hasToken(name string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

func isPrimaryName(name string) bool {
	return hasToken(strings.ToLower(name), primaryTokens)
}

// findRatePair looks for plausible numerator/denominator columns backing a
// rate KPI, e.g. conversion_rate alongside conversions and visits
func findRatePair(rateName string, profiles []report.ColumnProfile) (string, string) {
	base := strings.TrimSuffix(rateName, "_rate")
	numerator, denominator := "", ""
	for _, cp := range profiles {
		if cp.Name == rateName || cp.InferredType != table.TypeNumeric {
			continue
		}
		if numerator == "" && base != rateName && strings.Contains(cp.Name, base) {
			numerator = cp.Name
			continue
		}
		if denominator == "" && hasToken(cp.Name, []string{"total", "visit", "session", "user", "event"}) {
			denominator = cp.Name
		}
	}
	return numerator, denominator
}

// PrimaryKPIs filters the primary subset
func PrimaryKPIs(kpis []report.KPI) []report.KPI {
	var out []report.KPI
	for _, k := range kpis {
		if k.IsPrimary {
			out = append(out, k)
		}
	}
	return out
}
