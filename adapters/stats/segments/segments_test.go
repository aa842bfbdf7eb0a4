package segments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriscope/domain/report"
	"metriscope/domain/table"
)

// twoSegmentTable builds one row per day per platform over 20 days,
// with each platform stepping up at the halfway point
func twoSegmentTable(t *testing.T) *table.Table {
	t.Helper()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	dates := table.Column{Name: "date", Type: table.TypeDate}
	platform := table.Column{Name: "platform", Type: table.TypeString}
	revenue := table.Column{Name: "revenue", Type: table.TypeNumeric}

	addRow := func(day int, plat string, value float64) {
		dates.Cells = append(dates.Cells, table.NewDateValue(start.AddDate(0, 0, day)))
		platform.Cells = append(platform.Cells, table.NewStringValue(plat))
		revenue.Cells = append(revenue.Cells, table.NewNumericValue(value))
	}
	for day := 0; day < 20; day++ {
		iosVal, androidVal := 10.0, 20.0
		if day >= 10 {
			iosVal, androidVal = 14.0, 22.0
		}
		addRow(day, "ios", iosVal)
		addRow(day, "android", androidVal)
	}

	tbl := &table.Table{Columns: []table.Column{dates, platform, revenue}}
	require.NoError(t, tbl.Validate())
	return tbl
}

func TestAnalyzeTemporalContributionsSumToFull(t *testing.T) {
	tbl := twoSegmentTable(t)
	profile := &report.Profile{
		DateColumn:     "date",
		SegmentColumns: []string{"platform"},
		KPIs:           []report.KPI{{Name: "revenue", Kind: report.KindMoney, IsPrimary: true}},
	}

	contribs := NewAnalyzer().Analyze(tbl, profile)
	require.Len(t, contribs, 2)

	// ios moved +4, android +2, equal shares; overall moved +3
	byValue := map[string]report.SegmentContribution{}
	sum := 0.0
	for _, c := range contribs {
		byValue[c.SegmentValue] = c
		sum += c.ContributionPct
	}
	assert.InDelta(t, 100.0, sum, 0.5)
	assert.InDelta(t, 66.67, byValue["ios"].ContributionPct, 0.5)
	assert.InDelta(t, 33.33, byValue["android"].ContributionPct, 0.5)
	assert.Equal(t, "up", byValue["ios"].Direction)

	// ranked by contribution magnitude
	assert.Equal(t, "ios", contribs[0].SegmentValue)
}

func TestAnalyzeStaticFallback(t *testing.T) {
	platform := table.Column{Name: "platform", Type: table.TypeString}
	score := table.Column{Name: "score", Type: table.TypeNumeric}
	for i := 0; i < 30; i++ {
		plat := "ios"
		val := 10.0
		if i%3 == 0 {
			plat = "android"
			val = 40.0
		}
		platform.Cells = append(platform.Cells, table.NewStringValue(plat))
		score.Cells = append(score.Cells, table.NewNumericValue(val))
	}
	tbl := &table.Table{Columns: []table.Column{platform, score}}
	require.NoError(t, tbl.Validate())

	profile := &report.Profile{
		SegmentColumns: []string{"platform"},
		KPIs:           []report.KPI{{Name: "score", Kind: report.KindCount}},
	}
	contribs := NewAnalyzer().Analyze(tbl, profile)
	require.Len(t, contribs, 2)

	for _, c := range contribs {
		if c.SegmentValue == "android" {
			assert.Equal(t, "up", c.Direction)
			assert.Greater(t, c.ContributionAbs, 0.0)
		} else {
			assert.Equal(t, "down", c.Direction)
			assert.Less(t, c.ContributionAbs, 0.0)
		}
	}
}

func TestFlagAnomalies(t *testing.T) {
	contribs := []report.SegmentContribution{
		{SegmentValue: "a", SegmentMean: 10, SegmentSize: 50},
		{SegmentValue: "b", SegmentMean: 11, SegmentSize: 50},
		{SegmentValue: "c", SegmentMean: 9, SegmentSize: 50},
		{SegmentValue: "d", SegmentMean: 10.5, SegmentSize: 50},
		{SegmentValue: "e", SegmentMean: 9.5, SegmentSize: 50},
		{SegmentValue: "f", SegmentMean: 60, SegmentSize: 50},
	}
	flagged := flagAnomalies(contribs)

	var anomalous []string
	for _, c := range flagged {
		if c.Anomalous {
			anomalous = append(anomalous, c.SegmentValue)
		}
	}
	assert.Equal(t, []string{"f"}, anomalous)
}

func TestFlagAnomaliesRespectsMinSize(t *testing.T) {
	contribs := []report.SegmentContribution{
		{SegmentValue: "a", SegmentMean: 10, SegmentSize: 50},
		{SegmentValue: "b", SegmentMean: 11, SegmentSize: 50},
		{SegmentValue: "c", SegmentMean: 9, SegmentSize: 50},
		{SegmentValue: "d", SegmentMean: 10.5, SegmentSize: 50},
		{SegmentValue: "e", SegmentMean: 9.5, SegmentSize: 50},
		{SegmentValue: "f", SegmentMean: 60, SegmentSize: 5},
	}
	for _, c := range flagAnomalies(contribs) {
		assert.False(t, c.Anomalous)
	}
}

func TestAnalyzeNoSegments(t *testing.T) {
	tbl := twoSegmentTable(t)
	profile := &report.Profile{KPIs: []report.KPI{{Name: "revenue"}}}
	assert.Nil(t, NewAnalyzer().Analyze(tbl, profile))
}
