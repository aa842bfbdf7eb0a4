package ingest

import (
	"fmt"
	"sort"
	"strings"

	"metriscope/domain/core"
	"metriscope/domain/table"
	"metriscope/internal/errors"
)

// maxDimensionCardinality bounds which categorical columns become grouping
// dimensions during event aggregation
const maxDimensionCardinality = 50

// eventBucket accumulates one (date, dimensions) group
type eventBucket struct {
	date     core.Day
	dims     []string
	events   int
	actors   map[string]struct{}
	sums     map[string]float64
	convHits map[string]float64
}

// AggregateEvents converts event-level rows to daily granularity: per
// (date, dimension) group it emits an event count, a distinct-actor count,
// sums of detected value columns, and derived rate columns for
// conversion-like columns.
func AggregateEvents(tbl *table.Table, dateCol string) (*table.Table, []string, error) {
	dateColumn, ok := tbl.Column(dateCol)
	if !ok {
		return nil, nil, errors.Ingestionf("date column %q missing from event table", dateCol)
	}

	var steps []string
	actorCol := findActorColumn(tbl)

	// Grouping dimensions: low-cardinality string columns other than the
	// date and the actor
	var dimCols []string
	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if col.Name == dateCol || col.Name == actorCol || col.Type != table.TypeString {
			continue
		}
		card := distinctCount(col)
		if card > 1 && card < maxDimensionCardinality {
			dimCols = append(dimCols, col.Name)
		}
	}
	syntheticSegment := len(dimCols) == 0
	if syntheticSegment {
		steps = append(steps, "added default 'all_users' segment")
	}

	// Value and conversion columns detected by name
	var valueCols, convCols []string
	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if col.Name == dateCol {
			continue
		}
		if col.Type == table.TypeNumeric && hasAnyToken(col.Name, valueTokens) {
			valueCols = append(valueCols, col.Name)
		}
		if hasAnyToken(col.Name, conversionTokens) &&
			(col.Type == table.TypeBoolean || col.Type == table.TypeNumeric || col.Type == table.TypeString) {
			convCols = append(convCols, col.Name)
		}
	}

	buckets := make(map[string]*eventBucket)
	for row := 0; row < tbl.RowCount(); row++ {
		dateCell := dateColumn.Cells[row]
		if !dateCell.IsDate() {
			continue
		}
		day := dateCell.Day()

		dims := make([]string, 0, len(dimCols))
		for _, dc := range dimCols {
			col, _ := tbl.Column(dc)
			dims = append(dims, col.Cells[row].String())
		}
		if syntheticSegment {
			dims = []string{"all_users"}
		}

		key := day.String() + "\x00" + strings.Join(dims, "\x00")
		b := buckets[key]
		if b == nil {
			b = &eventBucket{
				date:     day,
				dims:     dims,
				actors:   make(map[string]struct{}),
				sums:     make(map[string]float64),
				convHits: make(map[string]float64),
			}
			buckets[key] = b
		}

		b.events++
		if actorCol != "" {
			col, _ := tbl.Column(actorCol)
			if cell := col.Cells[row]; !cell.IsMissing {
				b.actors[cell.String()] = struct{}{}
			}
		}
		for _, vc := range valueCols {
			col, _ := tbl.Column(vc)
			if cell := col.Cells[row]; cell.IsNumeric() {
				b.sums[vc] += cell.Float()
			}
		}
		for _, cc := range convCols {
			col, _ := tbl.Column(cc)
			if converted(col.Cells[row]) {
				b.convHits[cc]++
			}
		}
	}

	if len(buckets) == 0 {
		return nil, nil, errors.Ingestion("no rows with parseable dates to aggregate")
	}

	ordered := make([]*eventBucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].date.Equal(ordered[j].date) {
			return ordered[i].date.Before(ordered[j].date)
		}
		return strings.Join(ordered[i].dims, "\x00") < strings.Join(ordered[j].dims, "\x00")
	})

	out := buildAggregatedTable(ordered, dimCols, syntheticSegment, actorCol, valueCols, convCols)

	steps = append(steps, fmt.Sprintf("aggregated %d events into %d daily buckets", tbl.RowCount(), out.RowCount()))
	if actorCol != "" {
		steps = append(steps, fmt.Sprintf("calculated dau from %s", actorCol))
	}
	for _, vc := range valueCols {
		steps = append(steps, fmt.Sprintf("summed %s per bucket", vc))
	}
	for _, cc := range convCols {
		steps = append(steps, fmt.Sprintf("derived %s_rate from %s", cc, cc))
	}
	return out, steps, nil
}

func converted(cell table.Value) bool {
	switch {
	case cell.IsMissing:
		return false
	case cell.BoolVal != nil:
		return *cell.BoolVal
	case cell.IsNumeric():
		return cell.Float() != 0
	case cell.StringVal != nil:
		b, ok := parseBoolToken(cell.Text())
		return ok && b
	}
	return false
}

func buildAggregatedTable(ordered []*eventBucket, dimCols []string, syntheticSegment bool, actorCol string, valueCols, convCols []string) *table.Table {
	n := len(ordered)
	out := &table.Table{}

	dateCells := make([]table.Value, n)
	for i, b := range ordered {
		dateCells[i] = table.NewDateValue(b.date.Time())
	}
	out.Columns = append(out.Columns, table.Column{Name: "date", Type: table.TypeDate, Cells: dateCells})

	dimNames := dimCols
	if syntheticSegment {
		dimNames = []string{"segment"}
	}
	for d, name := range dimNames {
		cells := make([]table.Value, n)
		for i, b := range ordered {
			cells[i] = table.NewStringValue(b.dims[d])
		}
		out.Columns = append(out.Columns, table.Column{Name: name, Type: table.TypeString, Cells: cells})
	}

	eventCells := make([]table.Value, n)
	for i, b := range ordered {
		eventCells[i] = table.NewNumericValue(float64(b.events))
	}
	out.Columns = append(out.Columns, table.Column{Name: "events", Type: table.TypeNumeric, Cells: eventCells})

	if actorCol != "" {
		dauCells := make([]table.Value, n)
		for i, b := range ordered {
			dauCells[i] = table.NewNumericValue(float64(len(b.actors)))
		}
		out.Columns = append(out.Columns, table.Column{Name: "dau", Type: table.TypeNumeric, Cells: dauCells})

		spuCells := make([]table.Value, n)
		for i, b := range ordered {
			if len(b.actors) > 0 {
				spuCells[i] = table.NewNumericValue(float64(b.events) / float64(len(b.actors)))
			} else {
				spuCells[i] = table.Missing()
			}
		}
		out.Columns = append(out.Columns, table.Column{Name: "sessions_per_user", Type: table.TypeNumeric, Cells: spuCells})
	}

	for _, vc := range valueCols {
		cells := make([]table.Value, n)
		for i, b := range ordered {
			cells[i] = table.NewNumericValue(b.sums[vc])
		}
		out.Columns = append(out.Columns, table.Column{Name: vc, Type: table.TypeNumeric, Cells: cells})

		if actorCol != "" {
			name := "arpdau"
			if len(valueCols) > 1 {
				name = "arpdau_" + vc
			}
			arpCells := make([]table.Value, n)
			for i, b := range ordered {
				if len(b.actors) > 0 {
					arpCells[i] = table.NewNumericValue(b.sums[vc] / float64(len(b.actors)))
				} else {
					arpCells[i] = table.Missing()
				}
			}
			out.Columns = append(out.Columns, table.Column{Name: name, Type: table.TypeNumeric, Cells: arpCells})
		}
	}

	for _, cc := range convCols {
		countCells := make([]table.Value, n)
		rateCells := make([]table.Value, n)
		for i, b := range ordered {
			hits := b.convHits[cc]
			countCells[i] = table.NewNumericValue(hits)
			if b.events > 0 {
				rateCells[i] = table.NewNumericValue(hits / float64(b.events))
			} else {
				rateCells[i] = table.Missing()
			}
		}
		out.Columns = append(out.Columns, table.Column{Name: cc + "_count", Type: table.TypeNumeric, Cells: countCells})
		out.Columns = append(out.Columns, table.Column{Name: cc + "_rate", Type: table.TypeNumeric, Cells: rateCells})
	}

	return out
}
