package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriscope/domain/core"
	"metriscope/domain/report"
)

func pctPtr(f float64) *float64 { return &f }

func day(s string) core.Day {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return core.NewDay(t)
}

func TestHypothesesRankExperimentsFirst(t *testing.T) {
	f := Findings{
		Experiments: []report.ExperimentResult{{
			KPI: "conversion_rate", ControlVariant: "control", TestVariant: "treatment",
			UpliftPct: pctPtr(30), UpliftSign: 1, PValue: 0.001, Significant: true,
		}},
		ChangePoints: []report.ChangePoint{{
			KPI: "revenue", Date: day("2025-04-10"), BeforeMean: 100, AfterMean: 140,
			DeltaPct: 40, Confidence: report.ConfidenceHigh,
		}},
		Trends: []report.Trend{{
			KPI: "dau", Direction: report.DirectionIncreasing,
			OverallChangePct: pctPtr(12), Description: "dau increased +12.0% overall",
		}},
	}

	hyps := NewGenerator().Hypotheses(f)
	require.Len(t, hyps, 3)
	assert.Equal(t, report.EvidenceExperiment, hyps[0].Evidence[0].Kind)
	assert.Equal(t, report.ConfidenceHigh, hyps[0].Confidence)
	assert.Equal(t, report.EvidenceChangePoint, hyps[1].Evidence[0].Kind)
	assert.Equal(t, report.EvidenceTrend, hyps[2].Evidence[0].Kind)
}

func TestHypothesisCombinationNeverUpgradesConfidence(t *testing.T) {
	f := Findings{
		ChangePoints: []report.ChangePoint{{
			KPI: "revenue", Date: day("2025-04-10"), DeltaPct: 40,
			Confidence: report.ConfidenceHigh,
		}},
		Segments: []report.SegmentContribution{{
			SegmentColumn: "platform", SegmentValue: "ios", KPI: "revenue",
			ContributionPct: 25, Anomalous: true, ZScore: 2.5, SegmentSize: 40,
		}},
	}

	hyps := NewGenerator().Hypotheses(f)
	require.Len(t, hyps, 1)
	// 25% contribution is medium evidence; the pair can be at most medium
	assert.Equal(t, report.ConfidenceMedium, hyps[0].Confidence)
	assert.Len(t, hyps[0].Evidence, 2)
}

func TestDecisionsShipOnCleanSignificantWin(t *testing.T) {
	f := Findings{
		Experiments: []report.ExperimentResult{{
			KPI: "conversion_rate", ControlVariant: "control", TestVariant: "treatment",
			ControlMean: 10, TestMean: 13, ControlCount: 200, TestCount: 200,
			UpliftPct: pctPtr(30), UpliftSign: 1, CILower: 25, CIUpper: 35,
			PValue: 0.0001, Significant: true,
		}},
	}

	decisions := NewGenerator().Decisions(f)
	require.Len(t, decisions, 1)
	assert.Equal(t, "ship", decisions[0].Kind)
	assert.Equal(t, report.ConfidenceHigh, decisions[0].Confidence)
	assert.Empty(t, decisions[0].Risks)
	assert.Equal(t, []string{"conversion_rate"}, decisions[0].KPIs)
}

func TestDecisionsHoldOnSignificantRegression(t *testing.T) {
	f := Findings{
		Experiments: []report.ExperimentResult{{
			KPI: "retention", TestVariant: "treatment", UpliftPct: pctPtr(-8),
			UpliftSign: -1, PValue: 0.002, Significant: true,
			Warnings: []report.WarningKind{report.WarnSmallSample},
		}},
	}

	decisions := NewGenerator().Decisions(f)
	require.Len(t, decisions, 1)
	assert.Equal(t, "hold", decisions[0].Kind)
	assert.Equal(t, report.ConfidenceMedium, decisions[0].Confidence)
	assert.NotEmpty(t, decisions[0].Risks)
}

func TestDecisionsIterateWhenInconclusive(t *testing.T) {
	f := Findings{
		Experiments: []report.ExperimentResult{{
			KPI: "conversion_rate", TestVariant: "treatment", UpliftPct: pctPtr(2),
			UpliftSign: 1, PValue: 0.4, Significant: false,
			ControlCount: 50, TestCount: 50, RequiredPerArm: 900,
		}},
	}

	decisions := NewGenerator().Decisions(f)
	require.Len(t, decisions, 1)
	assert.Equal(t, "iterate", decisions[0].Kind)
	assert.Contains(t, decisions[0].Rationale, "900")
}

func TestDecisionsInvestigateHighConfidenceChangePoint(t *testing.T) {
	f := Findings{
		ChangePoints: []report.ChangePoint{
			{KPI: "revenue", Date: day("2025-04-10"), DeltaPct: 40, Confidence: report.ConfidenceHigh},
			{KPI: "revenue", Date: day("2025-04-20"), DeltaPct: 15, Confidence: report.ConfidenceHigh},
			{KPI: "dau", Date: day("2025-04-12"), DeltaPct: -12, Confidence: report.ConfidenceLow},
		},
	}

	decisions := NewGenerator().Decisions(f)
	require.Len(t, decisions, 1) // one per KPI, low confidence skipped
	assert.Equal(t, "investigate", decisions[0].Kind)
	assert.Contains(t, decisions[0].Decision, "2025-04-10")
}

func TestNextChecksFromIssuesAndSegments(t *testing.T) {
	f := Findings{
		Profile: &report.Profile{
			QualityIssues: []report.QualityIssue{
				{Kind: "high_missingness", Column: "country", Severity: report.SeverityHigh, Description: "62% missing"},
				{Kind: "duplicate_rows", Severity: report.SeverityLow, Description: "3 duplicates"},
			},
		},
		Segments: []report.SegmentContribution{{
			SegmentColumn: "platform", SegmentValue: "web", KPI: "revenue",
			Anomalous: true, ZScore: -2.8,
		}},
	}

	checks := NewGenerator().NextChecks(f)
	require.Len(t, checks, 2) // low-severity issue skipped
	assert.Contains(t, checks[0].Question, "platform=web")
	assert.Contains(t, checks[1].Question, "high_missingness")
}

func TestSummaryBulletsPreferDecisions(t *testing.T) {
	f := Findings{
		Profile: &report.Profile{
			ColumnCount: 6,
			DataMode:    report.ModeExperiment,
			GroupColumn: "variant",
			KPIs:        []report.KPI{{Name: "conversion_rate"}},
		},
	}
	decisions := []report.Decision{{Decision: "Ship variant \"treatment\"", Kind: "ship"}}

	bullets := NewGenerator().SummaryBullets(f, nil, decisions)
	require.NotEmpty(t, bullets)
	assert.Contains(t, bullets, "Ship variant \"treatment\"")
}
