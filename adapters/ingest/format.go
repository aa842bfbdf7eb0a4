package ingest

import (
	"strings"

	"metriscope/domain/table"
)

var (
	actorTokens      = []string{"user", "customer", "visitor", "uid", "account"}
	eventTokens      = []string{"event", "action", "activity"}
	valueTokens      = []string{"revenue", "amount", "price", "value", "spend"}
	conversionTokens = []string{"converted", "purchased", "success", "completed"}
)

func hasAnyToken(name string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

// findActorColumn returns the row-identifying actor column: a column whose
// name carries an actor token and whose cardinality is high enough that it
// identifies individuals rather than segments
func findActorColumn(tbl *table.Table) string {
	rows := tbl.RowCount()
	if rows == 0 {
		return ""
	}
	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if !hasAnyToken(col.Name, actorTokens) {
			continue
		}
		if distinctCount(col) > rows/10 {
			return col.Name
		}
	}
	return ""
}

func distinctCount(col *table.Column) int {
	seen := make(map[string]struct{})
	for _, cell := range col.Cells {
		if cell.IsMissing {
			continue
		}
		seen[cell.String()] = struct{}{}
	}
	return len(seen)
}

// classifyFormat decides the raw input's shape. Rules are checked in
// priority order; the first match wins.
func classifyFormat(tbl *table.Table, dateCol string, rawDates []string) table.DetectedFormat {
	rows := tbl.RowCount()
	numericCols := 0
	for i := range tbl.Columns {
		if tbl.Columns[i].Type == table.TypeNumeric {
			numericCols++
		}
	}

	// Event-level: timestamps so granular that most rows carry a distinct
	// one, plus an actor column, or explicit event columns with an actor.
	if dateCol != "" && rows > 0 {
		distinctStamps := make(map[string]struct{}, rows)
		for _, v := range rawDates {
			if !isMissingToken(v) {
				distinctStamps[strings.TrimSpace(v)] = struct{}{}
			}
		}
		granular := float64(len(distinctStamps))/float64(rows) > 0.8
		actor := findActorColumn(tbl)
		hasEventCol := false
		for _, name := range tbl.ColumnNames() {
			if hasAnyToken(name, eventTokens) {
				hasEventCol = true
				break
			}
		}
		if actor != "" && (granular || hasEventCol) {
			return table.FormatEventLevel
		}
	}

	// Wide: mostly numeric columns, one row per time bucket, few rows
	// relative to the metric column count
	if dateCol != "" && tbl.ColumnCount() > 0 &&
		float64(numericCols)/float64(tbl.ColumnCount()) > 0.5 &&
		rows < tbl.ColumnCount()*2 {
		return table.FormatWide
	}

	if dateCol != "" && numericCols > 0 {
		return table.FormatTimeseries
	}
	return table.FormatAlreadyClean
}
