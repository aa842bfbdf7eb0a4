package excel

import (
	"bytes"
	"log"

	"github.com/xuri/excelize/v2"

	"metriscope/adapters/ingest"
	"metriscope/internal/errors"
)

// ReadWorkbook parses XLSX bytes and runs the first sheet through the same
// normalization pipeline as delimited text
func ReadWorkbook(raw []byte, opts ingest.Options) (*ingest.Result, error) {
	if opts.MaxBytes > 0 && int64(len(raw)) > opts.MaxBytes {
		return nil, errors.Ingestionf("workbook of %d bytes exceeds the %d byte limit", len(raw), opts.MaxBytes)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeIngestion, err), "failed to open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Ingestion("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeIngestion, err), "failed to read sheet %q", sheets[0])
	}
	if len(rows) < 2 {
		return nil, errors.Ingestion("sheet has no data rows")
	}
	log.Printf("[excel] read sheet %q: %d rows", sheets[0], len(rows))

	res, err := ingest.IngestRecords(rows[0], rows[1:], opts)
	if err != nil {
		return nil, err
	}
	res.Ledger.Encoding = "xlsx"
	return res, nil
}

// IsWorkbook sniffs the ZIP magic that every XLSX file starts with
func IsWorkbook(raw []byte) bool {
	return len(raw) >= 4 && raw[0] == 'P' && raw[1] == 'K' && raw[2] == 0x03 && raw[3] == 0x04
}
