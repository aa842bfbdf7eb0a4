package profiling

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"metriscope/domain/core"
	"metriscope/domain/report"
	"metriscope/domain/table"
	"metriscope/internal/errors"
)

// Profiler classifies columns, infers the data mode, flags KPIs and
// segment candidates, and runs quality checks over a normalized table
type Profiler struct{}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{}
}

// groupTokens marks experiment/variant columns by name
var groupTokens = []string{"variant", "group", "experiment", "treatment", "control", "test", "arm"}

const (
	minSegmentCardinality = 2
	maxSegmentCardinality = 50
	maxGroupCardinality   = 10
	highMissingRatio      = 0.5
	sampleValueLimit      = 5
)

// Profile runs the full profiling pass. It fails only when no data mode is
// determinable at all (no date column, no group column, no KPI); every
// other defect becomes a recorded quality issue.
func (p *Profiler) Profile(tbl *table.Table, dateCol string) (*report.Profile, error) {
	prof := &report.Profile{
		RowCount:    tbl.RowCount(),
		ColumnCount: tbl.ColumnCount(),
		DateColumn:  dateCol,
	}

	prof.DuplicateCount = countDuplicateRows(tbl)
	for i := range tbl.Columns {
		prof.Columns = append(prof.Columns, p.profileColumn(&tbl.Columns[i], tbl.RowCount()))
	}

	prof.GroupColumn = detectGroupColumn(tbl, prof.Columns)
	prof.DataMode = detectDataMode(dateCol, prof.GroupColumn)
	prof.TimeRange = timeRange(tbl, dateCol)
	prof.KPIs = DetectKPIs(tbl, prof.Columns, dateCol, prof.GroupColumn)
	prof.SegmentColumns = detectSegmentColumns(prof.Columns, dateCol, prof.GroupColumn)
	prof.QualityIssues = p.qualityChecks(tbl, prof)

	if prof.DataMode == report.ModeStatic && len(prof.KPIs) == 0 {
		return nil, errors.Schema("no date column, group column, or KPI detected; nothing to analyze")
	}
	return prof, nil
}

// profileColumn computes the immutable per-column profile
func (p *Profiler) profileColumn(col *table.Column, rowCount int) report.ColumnProfile {
	cp := report.ColumnProfile{
		Name:         col.Name,
		InferredType: col.Type,
	}

	missing := 0
	distinct := make(map[string]struct{})
	var numeric []float64
	for _, cell := range col.Cells {
		if cell.IsMissing {
			missing++
			continue
		}
		distinct[cell.String()] = struct{}{}
		if len(cp.SampleValues) < sampleValueLimit {
			cp.SampleValues = append(cp.SampleValues, cell.String())
		}
		if cell.IsNumeric() {
			numeric = append(numeric, cell.Float())
		}
	}

	if rowCount > 0 {
		cp.MissingRatio = float64(missing) / float64(rowCount)
	}
	cp.DistinctCount = len(distinct)
	cp.SemanticType = semanticType(col, cp.DistinctCount, rowCount)

	if len(numeric) > 0 {
		if mean, err := stats.Mean(numeric); err == nil {
			cp.Mean = &mean
		}
		if sd, err := stats.StandardDeviationSample(numeric); err == nil {
			cp.StdDev = &sd
		}
		if mn, err := stats.Min(numeric); err == nil {
			cp.Min = &mn
		}
		if mx, err := stats.Max(numeric); err == nil {
			cp.Max = &mx
		}
		if med, err := stats.Median(numeric); err == nil {
			cp.Median = &med
		}
	}
	return cp
}

// semanticType is a prioritized rule list; the first match wins and the
// fallback is explicit rather than a silent default
func semanticType(col *table.Column, distinct, rowCount int) string {
	switch col.Type {
	case table.TypeDate:
		return "datetime"
	case table.TypeNumeric:
		return "numeric"
	case table.TypeBoolean:
		return "boolean"
	}
	if rowCount == 0 || distinct == 0 {
		return "unknown"
	}
	ratio := float64(distinct) / float64(rowCount)
	if ratio > 0.95 {
		if idShaped(col) {
			return "id"
		}
		return "text"
	}
	if distinct < maxSegmentCardinality || ratio < 0.05 {
		return "categorical"
	}
	return "text"
}

func idShaped(col *table.Column) bool {
	checked := 0
	for _, cell := range col.Cells {
		if cell.IsMissing {
			continue
		}
		s := cell.String()
		if len(s) <= 10 && !isHexish(s) {
			return false
		}
		checked++
		if checked >= 10 {
			break
		}
	}
	return checked > 0
}

func isHexish(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r == '-':
		default:
			return false
		}
	}
	return len(s) > 0
}

// detectGroupColumn finds the experiment variant column: a low-cardinality
// column whose name carries a group token, or failing that one whose
// values spell control/test
func detectGroupColumn(tbl *table.Table, profiles []report.ColumnProfile) string {
	for _, cp := range profiles {
		if cp.InferredType == table.TypeDate {
			continue
		}
		name := strings.ToLower(cp.Name)
		for _, tok := range groupTokens {
			if strings.Contains(name, tok) &&
				cp.DistinctCount >= minSegmentCardinality && cp.DistinctCount <= maxGroupCardinality {
				return cp.Name
			}
		}
	}

	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if col.Type != table.TypeString {
			continue
		}
		hasControl, hasTest := false, false
		seen := make(map[string]struct{})
		for _, cell := range col.Cells {
			if cell.IsMissing {
				continue
			}
			v := strings.ToLower(cell.String())
			seen[v] = struct{}{}
			if len(seen) > maxGroupCardinality {
				break
			}
			if strings.Contains(v, "control") {
				hasControl = true
			}
			if strings.Contains(v, "test") || strings.Contains(v, "treatment") {
				hasTest = true
			}
		}
		if hasControl && hasTest && len(seen) <= maxGroupCardinality {
			return col.Name
		}
	}
	return ""
}

func detectDataMode(dateCol, groupCol string) report.DataMode {
	switch {
	case dateCol != "" && groupCol != "":
		return report.ModeBoth
	case dateCol != "":
		return report.ModeTimeseries
	case groupCol != "":
		return report.ModeExperiment
	}
	return report.ModeStatic
}

func timeRange(tbl *table.Table, dateCol string) *report.TimeRange {
	if dateCol == "" {
		return nil
	}
	col, ok := tbl.Column(dateCol)
	if !ok {
		return nil
	}
	var start, end core.Day
	found := false
	for _, cell := range col.Cells {
		if !cell.IsDate() {
			continue
		}
		d := cell.Day()
		if !found {
			start, end = d, d
			found = true
			continue
		}
		if d.Before(start) {
			start = d
		}
		if end.Before(d) {
			end = d
		}
	}
	if !found {
		return nil
	}
	return &report.TimeRange{Start: start, End: end, Days: start.DaysUntil(end)}
}

// detectSegmentColumns returns categorical columns usable for
// decomposition, excluding the date and group columns
func detectSegmentColumns(profiles []report.ColumnProfile, dateCol, groupCol string) []string {
	var segments []string
	for _, cp := range profiles {
		if cp.Name == dateCol || cp.Name == groupCol {
			continue
		}
		if cp.SemanticType != "categorical" && cp.SemanticType != "boolean" {
			continue
		}
		if cp.DistinctCount >= minSegmentCardinality && cp.DistinctCount <= maxSegmentCardinality {
			segments = append(segments, cp.Name)
		}
	}
	return segments
}

func countDuplicateRows(tbl *table.Table) int {
	if tbl.RowCount() == 0 {
		return 0
	}
	seen := make(map[string]struct{}, tbl.RowCount())
	dups := 0
	var b strings.Builder
	for r := 0; r < tbl.RowCount(); r++ {
		b.Reset()
		for c := range tbl.Columns {
			b.WriteString(tbl.Columns[c].Cells[r].String())
			b.WriteByte('\x1f')
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dups++
		} else {
			seen[key] = struct{}{}
		}
	}
	return dups
}

// qualityChecks records non-fatal data problems: high missingness,
// out-of-domain values, and constant columns
func (p *Profiler) qualityChecks(tbl *table.Table, prof *report.Profile) []report.QualityIssue {
	var issues []report.QualityIssue

	for _, cp := range prof.Columns {
		if cp.MissingRatio > highMissingRatio {
			severity := report.SeverityMedium
			if cp.MissingRatio > 0.8 {
				severity = report.SeverityHigh
			}
			issues = append(issues, report.QualityIssue{
				Kind:        "high_missingness",
				Column:      cp.Name,
				Severity:    severity,
				Description: fmt.Sprintf("column %q has %.1f%% missing values", cp.Name, cp.MissingRatio*100),
			})
		}
		if cp.InferredType == table.TypeNumeric && cp.DistinctCount == 1 && cp.MissingRatio < 1 {
			issues = append(issues, report.QualityIssue{
				Kind:        "constant_column",
				Column:      cp.Name,
				Severity:    report.SeverityLow,
				Description: fmt.Sprintf("column %q is constant and carries no signal", cp.Name),
			})
		}
	}

	for _, kpi := range prof.KPIs {
		values := tbl.NumericColumn(kpi.Name)
		switch kpi.Kind {
		case report.KindCount, report.KindMoney, report.KindDuration:
			negatives := 0
			for _, v := range values {
				if v < 0 {
					negatives++
				}
			}
			if negatives > 0 {
				issues = append(issues, report.QualityIssue{
					Kind:        "out_of_domain",
					Column:      kpi.Name,
					Severity:    report.SeverityMedium,
					Description: fmt.Sprintf("found %d negative values in %s column %q", negatives, kpi.Kind, kpi.Name),
				})
			}
		case report.KindRate:
			outOfRange := 0
			for _, v := range values {
				if v < 0 || v > 100 {
					outOfRange++
				}
			}
			if outOfRange > 0 {
				issues = append(issues, report.QualityIssue{
					Kind:        "out_of_domain",
					Column:      kpi.Name,
					Severity:    report.SeverityMedium,
					Description: fmt.Sprintf("found %d values outside [0,100] in rate column %q", outOfRange, kpi.Name),
				})
			}
		}
	}

	if prof.DuplicateCount > 0 {
		issues = append(issues, report.QualityIssue{
			Kind:     "duplicate_rows",
			Severity: report.SeverityLow,
			Description: fmt.Sprintf("found %d duplicate rows (%.1f%%)",
				prof.DuplicateCount, float64(prof.DuplicateCount)/float64(max(prof.RowCount, 1))*100),
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank(issues[i].Severity) < severityRank(issues[j].Severity)
	})
	return issues
}

func severityRank(s report.IssueSeverity) int {
	switch s {
	case report.SeverityHigh:
		return 0
	case report.SeverityMedium:
		return 1
	}
	return 2
}
