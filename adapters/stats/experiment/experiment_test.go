package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriscope/domain/report"
	"metriscope/domain/table"
)

func experimentTable(t *testing.T, controlVals, testVals []float64) *table.Table {
	t.Helper()
	group := table.Column{Name: "variant", Type: table.TypeString}
	metric := table.Column{Name: "conversion_rate", Type: table.TypeNumeric}
	for _, v := range controlVals {
		group.Cells = append(group.Cells, table.NewStringValue("control"))
		metric.Cells = append(metric.Cells, table.NewNumericValue(v))
	}
	for _, v := range testVals {
		group.Cells = append(group.Cells, table.NewStringValue("treatment"))
		metric.Cells = append(metric.Cells, table.NewNumericValue(v))
	}
	tbl := &table.Table{Columns: []table.Column{group, metric}}
	require.NoError(t, tbl.Validate())
	return tbl
}

func experimentProfile() *report.Profile {
	return &report.Profile{
		GroupColumn: "variant",
		KPIs:        []report.KPI{{Name: "conversion_rate", Kind: report.KindRate}},
	}
}

// spreadAround yields n values cycling through mean-1, mean, mean+1
func spreadAround(mean float64, n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = mean + float64(i%3) - 1
	}
	return vals
}

func TestAnalyzeClearUpliftIsSignificant(t *testing.T) {
	tbl := experimentTable(t, spreadAround(10, 200), spreadAround(13, 200))
	a := NewAnalyzer(Options{})

	results, issues := a.Analyze(context.Background(), tbl, experimentProfile())
	require.Empty(t, issues)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "control", r.ControlVariant)
	assert.Equal(t, "treatment", r.TestVariant)
	assert.Equal(t, 200, r.ControlCount)
	assert.Equal(t, 200, r.TestCount)
	require.NotNil(t, r.UpliftPct)
	assert.InDelta(t, 30.0, *r.UpliftPct, 1.0)
	assert.True(t, r.Significant)
	assert.Less(t, r.PValue, 0.05)
	assert.Greater(t, r.CILower, 0.0)
	assert.Empty(t, r.Warnings)
}

func TestAnalyzeIdenticalArmsNotSignificant(t *testing.T) {
	tbl := experimentTable(t, spreadAround(10, 150), spreadAround(10, 150))
	a := NewAnalyzer(Options{})

	results, issues := a.Analyze(context.Background(), tbl, experimentProfile())
	require.Empty(t, issues)
	require.Len(t, results, 1)
	assert.False(t, results[0].Significant)
	assert.GreaterOrEqual(t, results[0].PValue, 0.05)
}

func TestAnalyzeSmallSampleWarning(t *testing.T) {
	tbl := experimentTable(t, spreadAround(10, 30), spreadAround(13, 30))
	a := NewAnalyzer(Options{})

	results, _ := a.Analyze(context.Background(), tbl, experimentProfile())
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Warnings, report.WarnSmallSample)
	assert.Greater(t, results[0].RequiredPerArm, 0)
}

func TestAnalyzeUnequalGroupsWarning(t *testing.T) {
	tbl := experimentTable(t, spreadAround(10, 300), spreadAround(13, 120))
	a := NewAnalyzer(Options{})

	results, _ := a.Analyze(context.Background(), tbl, experimentProfile())
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Warnings, report.WarnUnequalGroups)
}

func TestAnalyzeNoGroupColumn(t *testing.T) {
	tbl := experimentTable(t, spreadAround(10, 50), spreadAround(13, 50))
	a := NewAnalyzer(Options{})

	results, issues := a.Analyze(context.Background(), tbl, &report.Profile{})
	assert.Nil(t, results)
	assert.Nil(t, issues)
}

func TestIdentifyControl(t *testing.T) {
	groups := map[string][]int{"treatment": {0}, "Control": {1}}
	assert.Equal(t, "Control", identifyControl(groups))

	groups = map[string][]int{"blue": {0}, "red": {1}}
	assert.Equal(t, "blue", identifyControl(groups))

	groups = map[string][]int{"b": {0}, "a": {1}}
	assert.Equal(t, "a", identifyControl(groups))
}

func TestBootstrapCIDeterministic(t *testing.T) {
	a := NewAnalyzer(Options{BootstrapResamples: 500, BootstrapWorkers: 3})
	control := spreadAround(10, 80)
	test := spreadAround(12, 80)

	lo1, hi1, err := a.bootstrapCI(context.Background(), control, test)
	require.NoError(t, err)
	lo2, hi2, err := a.bootstrapCI(context.Background(), control, test)
	require.NoError(t, err)

	assert.Equal(t, lo1, lo2)
	assert.Equal(t, hi1, hi2)
	assert.Less(t, lo1, hi1)
	// true uplift is 20%
	assert.Greater(t, lo1, 10.0)
	assert.Less(t, hi1, 30.0)
}

func TestWelchPValueConstantArms(t *testing.T) {
	p, err := welchPValue(5, 5, 0, 0, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	p, err = welchPValue(5, 8, 0, 0, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
}
