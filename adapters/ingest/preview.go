package ingest

import (
	"bytes"
	"encoding/csv"
	"io"

	"metriscope/domain/report"
	"metriscope/domain/table"
	"metriscope/internal/errors"
)

// previewRowLimit caps both the rows inspected and the sample returned
const previewRowLimit = 100

// Preview reports what ingestion would do with the input without running
// the full analysis: detected format, planned transformation, shapes, and
// a small row sample.
func Preview(raw []byte, opts Options, maxSampleRows int) (*report.Preview, error) {
	if opts.MaxBytes > 0 && int64(len(raw)) > opts.MaxBytes {
		return nil, errors.Ingestionf("input of %d bytes exceeds the %d byte limit", len(raw), opts.MaxBytes)
	}

	_, decoded := DetectEncoding(raw)
	delimiter := DetectDelimiter(decoded)

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for len(records) <= previewRowLimit {
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

	headers := records[0]
	rows := records[1:]
	if looksLikeHeaderRepair(headers, rows[0]) {
		headers = rows[0]
		rows = rows[1:]
	}
	names, _ := NormalizeHeaders(headers)

	raw2 := make([][]string, len(names))
	for i := range raw2 {
		raw2[i] = make([]string, len(rows))
		for r, row := range rows {
			if i < len(row) {
				raw2[i][r] = row[i]
			}
		}
	}

	dateCandidates := detectDateColumns(names, raw2)
	dateCol := ""
	if len(dateCandidates) > 0 {
		dateCol = dateCandidates[0]
	}

	ledger := &table.TransformLedger{}
	tbl := buildTypedTable(names, raw2, dateCandidates, ledger)

	var rawDates []string
	for i, name := range names {
		if name == dateCol {
			rawDates = raw2[i]
		}
	}
	format := classifyFormat(tbl, dateCol, rawDates)

	var numericCols []string
	for _, col := range tbl.Columns {
		if col.Type == table.TypeNumeric {
			numericCols = append(numericCols, col.Name)
		}
	}

	if maxSampleRows <= 0 {
		maxSampleRows = 10
	}
	sample := make([]map[string]string, 0, maxSampleRows)
	for r := 0; r < len(rows) && r < maxSampleRows; r++ {
		rowMap := make(map[string]string, len(names))
		for i, name := range names {
			if i < len(rows[r]) {
				rowMap[name] = rows[r][i]
			}
		}
		sample = append(sample, rowMap)
	}

	return &report.Preview{
		DetectedFormat:        format,
		PlannedTransformation: plannedTransformation(format, opts.AutoTransform),
		OriginalRows:          len(rows),
		OriginalColumns:       headers,
		StandardizedColumns:   names,
		DateColumn:            dateCol,
		NumericColumns:        numericCols,
		SampleRows:            sample,
	}, nil
}

// PreviewFromResult summarizes an already-ingested table, used for
// workbook input where the raw bytes are not delimited text
func PreviewFromResult(res *Result) *report.Preview {
	tbl := res.Table
	var numericCols []string
	for _, col := range tbl.Columns {
		if col.Type == table.TypeNumeric {
			numericCols = append(numericCols, col.Name)
		}
	}

	var original []string
	standardized := tbl.ColumnNames()
	for _, name := range standardized {
		src := name
		if orig, ok := res.Ledger.ColumnMapping[name]; ok {
			src = orig
		}
		original = append(original, src)
	}

	sampleLimit := 5
	if tbl.RowCount() < sampleLimit {
		sampleLimit = tbl.RowCount()
	}
	sample := make([]map[string]string, 0, sampleLimit)
	for r := 0; r < sampleLimit; r++ {
		rowMap := make(map[string]string, len(tbl.Columns))
		for _, col := range tbl.Columns {
			rowMap[col.Name] = col.Cells[r].String()
		}
		sample = append(sample, rowMap)
	}

	return &report.Preview{
		DetectedFormat:        res.Ledger.DetectedFormat,
		PlannedTransformation: plannedTransformation(res.Ledger.DetectedFormat, true),
		OriginalRows:          res.Ledger.OriginalRowCount,
		OriginalColumns:       original,
		StandardizedColumns:   standardized,
		DateColumn:            res.DateColumn,
		NumericColumns:        numericCols,
		SampleRows:            sample,
	}
}

func plannedTransformation(format table.DetectedFormat, autoTransform bool) string {
	switch format {
	case table.FormatEventLevel:
		if !autoTransform {
			return "event-level data detected; auto-transform disabled, will normalize only"
		}
		return "will aggregate events to daily metrics"
	case table.FormatWide:
		return "wide format detected; already suitable for analysis"
	case table.FormatTimeseries:
		return "already in timeseries format"
	default:
		return "no date column detected; will analyze as a static snapshot"
	}
}
