package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"metriscope/domain/table"
	"metriscope/internal/errors"
)

// Options controls one ingestion
type Options struct {
	// MaxBytes rejects oversized input before any parsing; <=0 disables
	// the bound
	MaxBytes int64
	// AutoTransform enables format transformations beyond normalization
	// (event aggregation). When false, ingestion only normalizes.
	AutoTransform bool
}

// Result is a normalized table plus the audit trail of how it was produced
type Result struct {
	Table      *table.Table
	Ledger     *table.TransformLedger
	DateColumn string
}

// Ingest parses raw delimited bytes into a normalized typed table. Fatal
// only on unreadable input or zero usable rows; every repair step is
// best-effort and recorded in the ledger.
func Ingest(raw []byte, opts Options) (*Result, error) {
	if opts.MaxBytes > 0 && int64(len(raw)) > opts.MaxBytes {
		return nil, errors.Ingestionf("input of %d bytes exceeds the %d byte limit", len(raw), opts.MaxBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Ingestion("input is empty")
	}

	encoding, decoded := DetectEncoding(raw)
	delimiter := DetectDelimiter(decoded)

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.WithCode(errors.CodeIngestion, err), "input is not parseable as delimited text")
		}
		records = append(records, rec)
	}
	if len(records) < 2 {
		return nil, errors.Ingestion("input has no data rows")
	}

	res, err := IngestRecords(records[0], records[1:], opts)
	if err != nil {
		return nil, err
	}
	res.Ledger.Encoding = encoding
	res.Ledger.Delimiter = string(delimiter)
	return res, nil
}

// IngestRecords normalizes already-split records (the CSV path above and
// the XLSX adapter both land here)
func IngestRecords(headers []string, rows [][]string, opts Options) (*Result, error) {
	ledger := &table.TransformLedger{OriginalRowCount: len(rows)}

	// Spreadsheet exports sometimes bury the real header in the first
	// data row behind "Unnamed: 0" style placeholders
	if len(rows) > 0 && looksLikeHeaderRepair(headers, rows[0]) {
		headers = rows[0]
		rows = rows[1:]
		ledger.Record("promoted first data row to column headers")
	}
	if len(rows) == 0 {
		return nil, errors.Ingestion("input has no data rows")
	}

	names, mapping := NormalizeHeaders(headers)
	ledger.ColumnMapping = mapping
	ledger.Record("standardized column names to snake_case")

	// Column-major raw strings, ragged rows padded with missing
	raw := make([][]string, len(names))
	for i := range raw {
		raw[i] = make([]string, len(rows))
		for r, row := range rows {
			if i < len(row) {
				raw[i][r] = row[i]
			}
		}
	}

	dateCandidates := detectDateColumns(names, raw)
	dateCol := ""
	if len(dateCandidates) > 0 {
		dateCol = dateCandidates[0]
		ledger.DateColumn = dateCol
		ledger.Record(fmt.Sprintf("detected date column: %s", dateCol))
	}

	tbl := buildTypedTable(names, raw, dateCandidates, ledger)

	var rawDateValues []string
	for i, name := range names {
		if name == dateCol {
			rawDateValues = raw[i]
			break
		}
	}

	format := classifyFormat(tbl, dateCol, rawDateValues)
	ledger.DetectedFormat = format
	ledger.TransformationType = "normalization"
	ledger.Record(fmt.Sprintf("classified input as %s", format))

	if format == table.FormatEventLevel && opts.AutoTransform {
		aggregated, steps, err := safeAggregate(tbl, dateCol)
		if err != nil {
			// Keep the pre-aggregation table rather than failing the request
			log.Printf("[ingest] event aggregation failed, continuing un-aggregated: %v", err)
			ledger.MarkDegraded(err.Error())
		} else {
			tbl = aggregated
			dateCol = "date"
			ledger.DateColumn = dateCol
			ledger.TransformationType = "event_aggregation"
			for _, s := range steps {
				ledger.Record(s)
			}
		}
	}

	ledger.FinalRowCount = tbl.RowCount()
	if err := tbl.Validate(); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeIngestion, err), "normalized table failed validation")
	}
	return &Result{Table: tbl, Ledger: ledger, DateColumn: dateCol}, nil
}

// safeAggregate shields the pipeline from aggregation panics so a bad
// event table degrades instead of aborting the request
func safeAggregate(tbl *table.Table, dateCol string) (out *table.Table, steps []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, steps = nil, nil
			err = errors.Ingestionf("aggregation panicked: %v", r)
		}
	}()
	return AggregateEvents(tbl, dateCol)
}

// buildTypedTable promotes each raw string column to its inferred type.
// Numeric promotion requires the threshold fraction of non-missing cells
// to parse; date candidates parse under the prioritized layout list;
// everything else stays a string.
func buildTypedTable(names []string, raw [][]string, dateCandidates []string, ledger *table.TransformLedger) *table.Table {
	isDateCandidate := make(map[string]bool, len(dateCandidates))
	for _, c := range dateCandidates {
		isDateCandidate[c] = true
	}

	tbl := &table.Table{}
	for i, name := range names {
		cells := make([]table.Value, len(raw[i]))

		switch {
		case isDateCandidate[name]:
			for r, v := range raw[i] {
				if t, ok := ParseDate(v); ok {
					cells[r] = table.NewDateValue(t)
				} else {
					cells[r] = table.Missing()
				}
			}
			tbl.Columns = append(tbl.Columns, table.Column{Name: name, Type: table.TypeDate, Cells: cells})

		case boolShaped(raw[i]):
			for r, v := range raw[i] {
				if b, ok := parseBoolToken(v); ok {
					cells[r] = table.NewBoolValue(b)
				} else {
					cells[r] = table.Missing()
				}
			}
			tbl.Columns = append(tbl.Columns, table.Column{Name: name, Type: table.TypeBoolean, Cells: cells})

		default:
			ratio, nonMissing := numericParseRatio(raw[i])
			if nonMissing > 0 && ratio >= numericPromotionThreshold {
				cleaned := false
				for r, v := range raw[i] {
					if isMissingToken(v) {
						cells[r] = table.Missing()
						continue
					}
					if f, ok := CleanNumeric(v); ok {
						cells[r] = table.NewNumericValue(f)
						if v != trimFloat(f) {
							cleaned = true
						}
					} else {
						cells[r] = table.Missing()
					}
				}
				if cleaned {
					ledger.Record(fmt.Sprintf("cleaned numeric formatting in %s", name))
				}
				tbl.Columns = append(tbl.Columns, table.Column{Name: name, Type: table.TypeNumeric, Cells: cells})
			} else {
				for r, v := range raw[i] {
					if isMissingToken(v) {
						cells[r] = table.Missing()
					} else {
						cells[r] = table.NewStringValue(v)
					}
				}
				tbl.Columns = append(tbl.Columns, table.Column{Name: name, Type: table.TypeString, Cells: cells})
			}
		}
	}
	return tbl
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// boolShaped reports whether every non-missing cell spells a boolean and
// at least one of them is a word rather than a 0/1 digit (digit-only
// columns stay numeric)
func boolShaped(raw []string) bool {
	sawWord := false
	sawAny := false
	for _, v := range raw {
		if isMissingToken(v) {
			continue
		}
		sawAny = true
		if _, ok := parseBoolToken(v); !ok {
			return false
		}
		if v != "0" && v != "1" {
			sawWord = true
		}
	}
	return sawAny && sawWord
}
