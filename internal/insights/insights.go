// Package insights fuses analyzer outputs into ranked hypotheses,
// recommended decisions, and follow-up checks. It is a deterministic
// rule engine: text enhancement downstream may rewrite wording but
// never the facts or confidence tiers decided here.
package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"metriscope/domain/report"
)

const (
	maxHypotheses = 10
	maxDecisions  = 5
	maxNextChecks = 10
	// dominantContributionPct above which a single segment explains
	// enough of a delta to anchor a high-confidence hypothesis
	dominantContributionPct = 30.0
)

// Findings is everything the upstream analyzers produced for one run
type Findings struct {
	Profile      *report.Profile
	Trends       []report.Trend
	ChangePoints []report.ChangePoint
	Experiments  []report.ExperimentResult
	Segments     []report.SegmentContribution
}

// Generator builds the narrative layer of a report
type Generator struct{}

// NewGenerator creates an insight generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Hypotheses emits ranked explanations: significant experiments first,
// then change points by shift magnitude (paired with co-occurring
// segment evidence when available), then notable trends. Combining
// evidence takes the minimum confidence of the parts.
func (g *Generator) Hypotheses(f Findings) []report.Hypothesis {
	var hypotheses []report.Hypothesis

	for _, exp := range f.Experiments {
		if !exp.Significant {
			continue
		}
		hypotheses = append(hypotheses, experimentHypothesis(exp))
	}

	cps := append([]report.ChangePoint(nil), f.ChangePoints...)
	sort.SliceStable(cps, func(i, j int) bool {
		return math.Abs(cps[i].DeltaPct) > math.Abs(cps[j].DeltaPct)
	})
	claimed := map[string]bool{}
	for _, cp := range cps {
		hyp := changePointHypothesis(cp, dominantSegment(f.Segments, cp.KPI))
		hypotheses = append(hypotheses, hyp)
		claimed[cp.KPI] = true
	}

	for _, seg := range f.Segments {
		if !seg.Anomalous || claimed[seg.KPI] {
			continue
		}
		hypotheses = append(hypotheses, segmentHypothesis(seg))
		claimed[seg.KPI] = true
	}

	for _, tr := range f.Trends {
		if tr.Direction == report.DirectionStable || claimed[tr.KPI] {
			continue
		}
		hypotheses = append(hypotheses, trendHypothesis(tr))
	}

	if len(hypotheses) > maxHypotheses {
		hypotheses = hypotheses[:maxHypotheses]
	}
	return hypotheses
}

func experimentHypothesis(exp report.ExperimentResult) report.Hypothesis {
	verb := "improved"
	if exp.UpliftSign < 0 {
		verb = "reduced"
	}
	desc := fmt.Sprintf("Variant %q %s %s by %s relative to %q (p=%.4f)",
		exp.TestVariant, verb, exp.KPI, formatUplift(exp.UpliftPct), exp.ControlVariant, exp.PValue)
	return report.Hypothesis{
		Description: desc,
		Confidence:  experimentConfidence(exp),
		Evidence: []report.Evidence{{
			Kind:    report.EvidenceExperiment,
			KPI:     exp.KPI,
			Summary: fmt.Sprintf("%s vs %s: %.4f vs %.4f, CI [%.2f, %.2f]", exp.ControlVariant, exp.TestVariant, exp.ControlMean, exp.TestMean, exp.CILower, exp.CIUpper),
		}},
	}
}

func changePointHypothesis(cp report.ChangePoint, seg *report.SegmentContribution) report.Hypothesis {
	direction := "rose"
	if cp.DeltaPct < 0 {
		direction = "fell"
	}
	evidence := []report.Evidence{{
		Kind:    report.EvidenceChangePoint,
		KPI:     cp.KPI,
		Summary: fmt.Sprintf("window means %.2f before vs %.2f after %s", cp.BeforeMean, cp.AfterMean, cp.Date),
	}}
	confidence := cp.Confidence
	desc := fmt.Sprintf("%s %s %.1f%% around %s", cp.KPI, direction, math.Abs(cp.DeltaPct), cp.Date)

	if seg != nil {
		desc += fmt.Sprintf(", driven largely by %s=%s (%.0f%% of the move)", seg.SegmentColumn, seg.SegmentValue, math.Abs(seg.ContributionPct))
		evidence = append(evidence, report.Evidence{
			Kind:    report.EvidenceSegment,
			KPI:     seg.KPI,
			Summary: fmt.Sprintf("%s=%s contributed %.1f%% moving %s", seg.SegmentColumn, seg.SegmentValue, seg.ContributionPct, seg.Direction),
		})
		confidence = confidence.Min(segmentConfidence(*seg))
	}
	return report.Hypothesis{Description: desc, Confidence: confidence, Evidence: evidence}
}

func segmentHypothesis(seg report.SegmentContribution) report.Hypothesis {
	return report.Hypothesis{
		Description: fmt.Sprintf("%s=%s behaves unlike its peers on %s (z=%.1f), contributing %.1f%% of the overall movement",
			seg.SegmentColumn, seg.SegmentValue, seg.KPI, seg.ZScore, seg.ContributionPct),
		Confidence: segmentConfidence(seg),
		Evidence: []report.Evidence{{
			Kind:    report.EvidenceSegment,
			KPI:     seg.KPI,
			Summary: fmt.Sprintf("segment mean %.4f over %d rows", seg.SegmentMean, seg.SegmentSize),
		}},
	}
}

func trendHypothesis(tr report.Trend) report.Hypothesis {
	confidence := report.ConfidenceLow
	if tr.Direction == report.DirectionIncreasing || tr.Direction == report.DirectionDecreasing {
		confidence = report.ConfidenceMedium
	}
	return report.Hypothesis{
		Description: tr.Description,
		Confidence:  confidence,
		Evidence: []report.Evidence{{
			Kind:    report.EvidenceTrend,
			KPI:     tr.KPI,
			Summary: fmt.Sprintf("direction %s, overall %s", tr.Direction, formatUplift(tr.OverallChangePct)),
		}},
	}
}

// Decisions recommends actions: ship or hold from significant
// experiments, iterate when an experiment is inconclusive, investigate
// on high-confidence change points. Risk notes surface sample-size and
// variance warnings explicitly.
func (g *Generator) Decisions(f Findings) []report.Decision {
	var decisions []report.Decision

	for _, exp := range f.Experiments {
		decisions = append(decisions, experimentDecision(exp))
	}

	investigated := map[string]bool{}
	for _, cp := range f.ChangePoints {
		if cp.Confidence != report.ConfidenceHigh || investigated[cp.KPI] {
			continue
		}
		investigated[cp.KPI] = true
		decisions = append(decisions, report.Decision{
			Decision:   fmt.Sprintf("Investigate what changed around %s for %s", cp.Date, cp.KPI),
			Kind:       "investigate",
			Confidence: cp.Confidence,
			Rationale:  fmt.Sprintf("%s shifted %.1f%% between adjacent windows (%.2f to %.2f)", cp.KPI, cp.DeltaPct, cp.BeforeMean, cp.AfterMean),
			KPIs:       []string{cp.KPI},
		})
	}

	if len(decisions) > maxDecisions {
		decisions = decisions[:maxDecisions]
	}
	return decisions
}

func experimentDecision(exp report.ExperimentResult) report.Decision {
	risks := riskNotes(exp)
	confidence := experimentConfidence(exp)

	switch {
	case exp.Significant && exp.UpliftSign > 0:
		return report.Decision{
			Decision:   fmt.Sprintf("Ship variant %q", exp.TestVariant),
			Kind:       "ship",
			Confidence: confidence,
			Rationale:  fmt.Sprintf("%s improved %s with p=%.4f and CI [%.2f, %.2f] excluding zero", exp.KPI, formatUplift(exp.UpliftPct), exp.PValue, exp.CILower, exp.CIUpper),
			Risks:      risks,
			KPIs:       []string{exp.KPI},
		}
	case exp.Significant && exp.UpliftSign < 0:
		return report.Decision{
			Decision:   fmt.Sprintf("Hold rollout of variant %q", exp.TestVariant),
			Kind:       "hold",
			Confidence: confidence,
			Rationale:  fmt.Sprintf("%s regressed %s with p=%.4f", exp.KPI, formatUplift(exp.UpliftPct), exp.PValue),
			Risks:      risks,
			KPIs:       []string{exp.KPI},
		}
	}

	rationale := fmt.Sprintf("no significant difference on %s (p=%.4f)", exp.KPI, exp.PValue)
	if exp.RequiredPerArm > max(exp.ControlCount, exp.TestCount) {
		rationale += fmt.Sprintf("; roughly %d samples per arm needed to detect the observed gap", exp.RequiredPerArm)
	}
	return report.Decision{
		Decision:   fmt.Sprintf("Keep running the %q experiment", exp.TestVariant),
		Kind:       "iterate",
		Confidence: report.ConfidenceMedium,
		Rationale:  rationale,
		Risks:      risks,
		KPIs:       []string{exp.KPI},
	}
}

// NextChecks proposes follow-up queries from quality issues, anomalous
// segments, and unresolved change points
func (g *Generator) NextChecks(f Findings) []report.NextCheck {
	var checks []report.NextCheck

	for _, cp := range f.ChangePoints {
		checks = append(checks, report.NextCheck{
			Question: fmt.Sprintf("What shipped or changed on %s?", cp.Date),
			Query:    fmt.Sprintf("filter rows where date between %s and %s, compare %s by every segment column", cp.Date.AddDays(-3), cp.Date.AddDays(3), cp.KPI),
			Priority: string(cp.Confidence),
			Why:      fmt.Sprintf("%s moved %.1f%% at that date", cp.KPI, cp.DeltaPct),
		})
	}

	for _, seg := range f.Segments {
		if !seg.Anomalous {
			continue
		}
		checks = append(checks, report.NextCheck{
			Question: fmt.Sprintf("Why does %s=%s diverge on %s?", seg.SegmentColumn, seg.SegmentValue, seg.KPI),
			Query:    fmt.Sprintf("group by %s, compare %s distribution against other values", seg.SegmentColumn, seg.KPI),
			Priority: "medium",
			Why:      fmt.Sprintf("z-score %.1f against peer segments", seg.ZScore),
		})
	}

	if f.Profile != nil {
		for _, issue := range f.Profile.QualityIssues {
			if issue.Severity == report.SeverityLow {
				continue
			}
			checks = append(checks, report.NextCheck{
				Question: fmt.Sprintf("Is the %s issue on %q expected?", issue.Kind, issue.Column),
				Query:    fmt.Sprintf("inspect column %q at the source", issue.Column),
				Priority: string(issue.Severity),
				Why:      issue.Description,
			})
		}
	}

	if len(checks) > maxNextChecks {
		checks = checks[:maxNextChecks]
	}
	return checks
}

// SummaryBullets builds the executive-summary headline lines
func (g *Generator) SummaryBullets(f Findings, hypotheses []report.Hypothesis, decisions []report.Decision) []string {
	var bullets []string
	if f.Profile != nil {
		if n := len(f.Profile.KPIs); n > 0 {
			bullets = append(bullets, fmt.Sprintf("Detected %d KPI(s) across %d columns", n, f.Profile.ColumnCount))
		}
		if f.Profile.DataMode == report.ModeExperiment || f.Profile.DataMode == report.ModeBoth {
			bullets = append(bullets, fmt.Sprintf("Experiment detected on column %q", f.Profile.GroupColumn))
		}
	}
	if len(f.ChangePoints) > 0 {
		cp := f.ChangePoints[0]
		bullets = append(bullets, fmt.Sprintf("Largest shift: %s moved %.1f%% around %s", cp.KPI, cp.DeltaPct, cp.Date))
	}
	for _, d := range decisions {
		if d.Kind == "ship" || d.Kind == "hold" {
			bullets = append(bullets, d.Decision)
			break
		}
	}
	if len(bullets) == 0 && len(hypotheses) > 0 {
		bullets = append(bullets, hypotheses[0].Description)
	}
	return bullets
}

func experimentConfidence(exp report.ExperimentResult) report.Confidence {
	if !exp.Significant {
		return report.ConfidenceLow
	}
	if len(exp.Warnings) == 0 {
		return report.ConfidenceHigh
	}
	return report.ConfidenceMedium
}

func segmentConfidence(seg report.SegmentContribution) report.Confidence {
	if math.Abs(seg.ContributionPct) > dominantContributionPct {
		return report.ConfidenceHigh
	}
	return report.ConfidenceMedium
}

// dominantSegment finds the strongest anomalous-or-dominant contribution
// for a KPI, or nil
func dominantSegment(segments []report.SegmentContribution, kpi string) *report.SegmentContribution {
	var best *report.SegmentContribution
	for i := range segments {
		seg := &segments[i]
		if seg.KPI != kpi {
			continue
		}
		if !seg.Anomalous && math.Abs(seg.ContributionPct) <= dominantContributionPct {
			continue
		}
		if best == nil || math.Abs(seg.ContributionPct) > math.Abs(best.ContributionPct) {
			best = seg
		}
	}
	return best
}

func riskNotes(exp report.ExperimentResult) []string {
	var risks []string
	for _, w := range exp.Warnings {
		switch w {
		case report.WarnSmallSample:
			risks = append(risks, fmt.Sprintf("small sample (%d vs %d observations)", exp.ControlCount, exp.TestCount))
		case report.WarnHighVariance:
			risks = append(risks, "high variance within at least one arm")
		case report.WarnShortDuration:
			risks = append(risks, "observation window shorter than one week")
		case report.WarnUnequalGroups:
			risks = append(risks, "arm sizes differ by more than 2x")
		}
	}
	return risks
}

func formatUplift(p *float64) string {
	if p == nil {
		return "from a zero baseline"
	}
	return strings.TrimSpace(fmt.Sprintf("%+.1f%%", *p))
}
