package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriscope/domain/table"
)

func TestCleanNumericFormatInvariant(t *testing.T) {
	cases := map[string]float64{
		"1,000":     1000.0,
		"$1,000.00": 1000.0,
		"1000":      1000.0,
		"5.5%":      5.5,
		"€2,500.50": 2500.5,
		"(150)":     -150.0,
		"-3.25":     -3.25,
	}
	for raw, want := range cases {
		got, ok := CleanNumeric(raw)
		require.True(t, ok, "parse %q", raw)
		assert.Equal(t, want, got, "clean %q", raw)
	}
}

func TestCleanNumericIdempotent(t *testing.T) {
	for _, raw := range []string{"1,000", "$42.50", "7.5%"} {
		once, ok := CleanNumeric(raw)
		require.True(t, ok)
		twice, ok := CleanNumeric(strings.TrimRight(strings.TrimRight(
			strings.ReplaceAll(raw, ",", ""), "%"), " "))
		require.True(t, ok)
		assert.Equal(t, once, twice, "cleaning %q twice drifted", raw)
	}
}

func TestCleanNumericRejectsText(t *testing.T) {
	for _, raw := range []string{"hello", "", "12a4", "N/A"} {
		_, ok := CleanNumeric(raw)
		assert.False(t, ok, "should not parse %q", raw)
	}
}

func TestNormalizeColumnNameStable(t *testing.T) {
	cases := map[string]string{
		"Revenue ($)":     "revenue",
		"Conversion %":    "conversion",
		"  User ID  ":     "user_id",
		"daily-active":    "daily_active",
		"Sign-Up Date":    "sign_up_date",
		"already_snake":   "already_snake",
	}
	for raw, want := range cases {
		got := NormalizeColumnName(raw)
		assert.Equal(t, want, got, "normalize %q", raw)
		// pure and stable under repeated application
		assert.Equal(t, got, NormalizeColumnName(got))
	}
}

func TestNormalizeHeadersDeduplicates(t *testing.T) {
	names, mapping := NormalizeHeaders([]string{"Revenue ($)", "revenue", "", "Revenue ($)"})
	assert.Equal(t, []string{"revenue", "revenue_2", "column_3", "revenue_3"}, names)

	// every source header survives in the mapping, repeated ones included
	assert.Equal(t, "Revenue ($)", mapping["revenue"])
	assert.Equal(t, "revenue", mapping["revenue_2"])
	assert.Equal(t, "Revenue ($)", mapping["revenue_3"])
	assert.Len(t, mapping, len(names))

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate normalized name %q", n)
		seen[n] = true
	}
}

func TestNormalizeHeadersSuffixCollision(t *testing.T) {
	// a source header that already normalizes to a suffixed form must not
	// collide with a generated suffix
	cases := [][]string{
		{"Metric", "Metric 2", "Metric"},
		{"Metric", "Metric", "Metric 2"},
		{"a", "a_2", "a", "a"},
	}
	for _, headers := range cases {
		names, mapping := NormalizeHeaders(headers)
		require.Len(t, names, len(headers))
		assert.Len(t, mapping, len(headers))
		seen := map[string]bool{}
		for _, n := range names {
			assert.False(t, seen[n], "duplicate normalized name %q in %v", n, names)
			seen[n] = true
		}
	}
}

func TestIngestDuplicateHeadersNotFatal(t *testing.T) {
	csv := "Metric,Metric 2,Metric\n" +
		"1,2,3\n" +
		"4,5,6\n"

	res, err := Ingest([]byte(csv), Options{AutoTransform: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"metric", "metric_2", "metric_3"}, res.Table.ColumnNames())
	assert.Equal(t, 2, res.Table.RowCount())
	assert.Equal(t, "Metric", res.Ledger.ColumnMapping["metric_3"])
}

func TestIngestMessyTimeseries(t *testing.T) {
	csv := "Date,Revenue ($),Conversion %\n" +
		"01/02/2025,\"$1,000\",5.5%\n" +
		"01/03/2025,\"$1,200\",5.7%\n" +
		"01/04/2025,\"$1,150\",5.2%\n"

	res, err := Ingest([]byte(csv), Options{AutoTransform: true})
	require.NoError(t, err)

	assert.Equal(t, "date", res.DateColumn)
	assert.Equal(t, table.FormatTimeseries, res.Ledger.DetectedFormat)
	assert.Equal(t, 3, res.Table.RowCount())

	revenue, ok := res.Table.Column("revenue")
	require.True(t, ok)
	assert.Equal(t, table.TypeNumeric, revenue.Type)
	assert.Equal(t, 1000.0, revenue.Cells[0].Float())

	conversion, ok := res.Table.Column("conversion")
	require.True(t, ok)
	// displayed-percent convention: 5.5% stays 5.5
	assert.Equal(t, 5.5, conversion.Cells[0].Float())
}

func TestIngestHeaderRepair(t *testing.T) {
	csv := "Unnamed: 0,Unnamed: 1,Unnamed: 2\n" +
		"date,revenue,region\n" +
		"2025-01-02,100,NA\n" +
		"2025-01-03,120,EU\n"

	res, err := Ingest([]byte(csv), Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Table.ColumnNames(), "revenue")
	assert.Equal(t, 2, res.Table.RowCount())

	var promoted bool
	for _, step := range res.Ledger.Steps {
		if strings.Contains(step, "promoted first data row") {
			promoted = true
		}
	}
	assert.True(t, promoted, "ledger should record the header promotion")
}

func TestIngestTabDelimited(t *testing.T) {
	tsv := "date\trevenue\n2025-01-02\t100\n2025-01-03\t120\n"
	res, err := Ingest([]byte(tsv), Options{})
	require.NoError(t, err)
	assert.Equal(t, "\t", res.Ledger.Delimiter)
	assert.Equal(t, 2, res.Table.RowCount())
}

func TestIngestRejectsEmptyAndOversized(t *testing.T) {
	_, err := Ingest([]byte("   \n"), Options{})
	assert.Error(t, err)

	_, err = Ingest([]byte("a,b\n1,2\n"), Options{MaxBytes: 3})
	assert.Error(t, err)
}

// Event-level input covering 2 days with 3 users on day 1 and 2 users on
// day 2 aggregates to one row per platform-day bucket whose dau is the
// distinct actor count and whose revenue is the summed amounts
func TestIngestAggregatesEventLevel(t *testing.T) {
	var b strings.Builder
	b.WriteString("timestamp,user_id,revenue,platform\n")
	// day 1: u1,u2 on ios; u3 on android
	b.WriteString("2025-02-01 08:00:00,u1,10.00,ios\n")
	b.WriteString("2025-02-01 09:30:00,u1,5.00,ios\n")
	b.WriteString("2025-02-01 10:00:00,u2,7.50,ios\n")
	b.WriteString("2025-02-01 11:00:00,u3,4.00,android\n")
	// day 2: u1 on ios, u4 on android
	b.WriteString("2025-02-02 08:15:00,u1,3.00,ios\n")
	b.WriteString("2025-02-02 17:45:00,u4,6.00,android\n")

	res, err := Ingest([]byte(b.String()), Options{AutoTransform: true})
	require.NoError(t, err)
	assert.Equal(t, table.FormatEventLevel, res.Ledger.DetectedFormat)

	tbl := res.Table
	require.Equal(t, 4, tbl.RowCount(), "one row per platform-day bucket")

	dates, ok := tbl.Column("date")
	require.True(t, ok)
	platform, ok := tbl.Column("platform")
	require.True(t, ok)
	dau, ok := tbl.Column("dau")
	require.True(t, ok)
	revenue, ok := tbl.Column("revenue")
	require.True(t, ok)

	type bucket struct {
		dau     float64
		revenue float64
	}
	got := map[string]bucket{}
	for r := 0; r < tbl.RowCount(); r++ {
		key := dates.Cells[r].Day().String() + "/" + platform.Cells[r].Text()
		got[key] = bucket{dau: dau.Cells[r].Float(), revenue: revenue.Cells[r].Float()}
	}

	assert.Equal(t, bucket{dau: 2, revenue: 22.5}, got["2025-02-01/ios"])
	assert.Equal(t, bucket{dau: 1, revenue: 4.0}, got["2025-02-01/android"])
	assert.Equal(t, bucket{dau: 1, revenue: 3.0}, got["2025-02-02/ios"])
	assert.Equal(t, bucket{dau: 1, revenue: 6.0}, got["2025-02-02/android"])
}

func TestIngestNoTransformKeepsEvents(t *testing.T) {
	var b strings.Builder
	b.WriteString("timestamp,user_id,revenue,platform\n")
	b.WriteString("2025-02-01 08:00:00,u1,10.00,ios\n")
	b.WriteString("2025-02-01 09:30:00,u2,5.00,ios\n")
	b.WriteString("2025-02-01 10:00:00,u3,7.50,android\n")
	b.WriteString("2025-02-02 11:00:00,u4,4.00,android\n")

	res, err := Ingest([]byte(b.String()), Options{AutoTransform: false})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Table.RowCount(), "auto-transform off keeps raw events")
}

func TestDetectDelimiterSemicolon(t *testing.T) {
	decoded := []byte("date;revenue;region\n2025-01-02;100;NA\n2025-01-03;120;EU\n")
	assert.Equal(t, ';', DetectDelimiter(decoded))
}

func TestDetectEncodingUTF8BOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)
	enc, decoded := DetectEncoding(raw)
	assert.Equal(t, "utf-8-sig", enc)
	assert.Equal(t, byte('a'), decoded[0])
}

func TestPreviewDoesNotAggregate(t *testing.T) {
	var b strings.Builder
	b.WriteString("timestamp,user_id,revenue,platform\n")
	b.WriteString("2025-02-01 08:00:00,u1,10.00,ios\n")
	b.WriteString("2025-02-01 09:30:00,u2,5.00,ios\n")
	b.WriteString("2025-02-01 10:00:00,u3,7.50,android\n")

	preview, err := Preview([]byte(b.String()), Options{AutoTransform: true}, 2)
	require.NoError(t, err)
	assert.Equal(t, table.FormatEventLevel, preview.DetectedFormat)
	assert.Contains(t, preview.PlannedTransformation, "aggregate")
	assert.Equal(t, 3, preview.OriginalRows)
	assert.Len(t, preview.SampleRows, 2)
}
