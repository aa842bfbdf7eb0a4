// Package render turns a finished report into human-readable markdown
// and HTML narratives.
package render

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"metriscope/domain/report"
)

// Markdown renders the report as a markdown document
func Markdown(rep *report.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis Report %s\n\n", rep.ID)
	fmt.Fprintf(&b, "**Rows:** %d · **Columns:** %d · **Mode:** %s\n\n",
		rep.ExecutiveSummary.RowCount, rep.ExecutiveSummary.ColumnCount, rep.ExecutiveSummary.DataMode)
	if tr := rep.ExecutiveSummary.TimeRange; tr != nil {
		fmt.Fprintf(&b, "**Window:** %s to %s (%d days)\n\n", tr.Start, tr.End, tr.Days)
	}

	if len(rep.ExecutiveSummary.Bullets) > 0 {
		b.WriteString("## Summary\n\n")
		for _, bullet := range rep.ExecutiveSummary.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		b.WriteString("\n")
	}

	if len(rep.KPIs) > 0 {
		b.WriteString("## KPIs\n\n| KPI | Kind | Primary |\n|---|---|---|\n")
		for _, kpi := range rep.KPIs {
			primary := ""
			if kpi.IsPrimary {
				primary = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", kpi.Name, kpi.Kind, primary)
		}
		b.WriteString("\n")
	}

	if len(rep.Trends) > 0 {
		b.WriteString("## Trends\n\n")
		for _, tr := range rep.Trends {
			fmt.Fprintf(&b, "- %s\n", tr.Description)
		}
		b.WriteString("\n")
	}

	if len(rep.ChangePoints) > 0 {
		b.WriteString("## Change Points\n\n| KPI | Date | Shift | Confidence |\n|---|---|---|---|\n")
		for _, cp := range rep.ChangePoints {
			fmt.Fprintf(&b, "| %s | %s | %+.1f%% | %s |\n", cp.KPI, cp.Date, cp.DeltaPct, cp.Confidence)
		}
		b.WriteString("\n")
	}

	if len(rep.Experiments) > 0 {
		b.WriteString("## Experiment Results\n\n")
		for _, exp := range rep.Experiments {
			status := "not significant"
			if exp.Significant {
				status = "significant"
			}
			uplift := "n/a"
			if exp.UpliftPct != nil {
				uplift = fmt.Sprintf("%+.1f%%", *exp.UpliftPct)
			}
			fmt.Fprintf(&b, "- **%s** %s vs %s: uplift %s, p=%.4f, CI [%.2f, %.2f] (%s)\n",
				exp.KPI, exp.TestVariant, exp.ControlVariant, uplift, exp.PValue, exp.CILower, exp.CIUpper, status)
		}
		b.WriteString("\n")
	}

	if len(rep.Hypotheses) > 0 {
		b.WriteString("## Hypotheses\n\n")
		for i, hyp := range rep.Hypotheses {
			fmt.Fprintf(&b, "%d. %s _(confidence: %s)_\n", i+1, hyp.Description, hyp.Confidence)
		}
		b.WriteString("\n")
	}

	if len(rep.Decisions) > 0 {
		b.WriteString("## Recommended Decisions\n\n")
		for _, d := range rep.Decisions {
			fmt.Fprintf(&b, "- **%s** _(confidence: %s)_: %s\n", d.Decision, d.Confidence, d.Rationale)
			for _, risk := range d.Risks {
				fmt.Fprintf(&b, "  - risk: %s\n", risk)
			}
		}
		b.WriteString("\n")
	}

	if len(rep.NextChecks) > 0 {
		b.WriteString("## Next Checks\n\n")
		for _, check := range rep.NextChecks {
			fmt.Fprintf(&b, "- %s (%s)\n", check.Question, check.Priority)
		}
		b.WriteString("\n")
	}

	if ledger := rep.Metadata.Transformation; ledger != nil && len(ledger.Steps) > 0 {
		b.WriteString("## Transformations Applied\n\n")
		for _, step := range ledger.Steps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders the markdown narrative to an HTML fragment
func HTML(rep *report.AnalysisReport) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(Markdown(rep)))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}
