package app

import (
	"context"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"metriscope/adapters/excel"
	"metriscope/adapters/ingest"
	"metriscope/adapters/stats/experiment"
	"metriscope/adapters/stats/segments"
	"metriscope/adapters/stats/trend"
	"metriscope/domain/core"
	"metriscope/domain/report"
	"metriscope/internal/config"
	"metriscope/internal/insights"
	"metriscope/internal/profiling"
	"metriscope/ports"
)

// AnalysisService orchestrates the full pipeline: ingestion, profiling,
// the three analyzers in parallel, insight generation, then the optional
// text-enhancement and archival hooks. The service is stateless between
// invocations; each request owns its table and discards it afterwards.
type AnalysisService struct {
	cfg      config.AnalysisConfig
	enhancer ports.Enhancer
	archive  ports.ReportArchive
}

// AnalyzeRequest is one upload to analyze
type AnalyzeRequest struct {
	Filename string
	Raw      []byte
	MaxBytes int64
	// DisableTransform keeps ingestion to normalization only
	DisableTransform bool
}

// NewAnalysisService creates an analysis service. Enhancer and archive
// are optional; nil disables the respective hook.
func NewAnalysisService(cfg config.AnalysisConfig, enhancer ports.Enhancer, archive ports.ReportArchive) *AnalysisService {
	return &AnalysisService{cfg: cfg, enhancer: enhancer, archive: archive}
}

// Analyze runs the whole pipeline and returns the structured report
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*report.AnalysisReport, error) {
	if s.cfg.WallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WallClockBudget)
		defer cancel()
	}

	ingested, err := s.ingest(req)
	if err != nil {
		return nil, err
	}
	tbl := ingested.Table

	profiler := profiling.NewProfiler()
	profile, err := profiler.Profile(tbl, ingested.DateColumn)
	if err != nil {
		return nil, err
	}

	// The three analyzers share the read-only table and write disjoint
	// slots, merged after all complete. A failed KPI inside any of them
	// surfaces as a quality issue, not an error.
	var (
		trends        []report.Trend
		changePoints  []report.ChangePoint
		dailyDeltas   []report.DailyDelta
		experiments   []report.ExperimentResult
		expIssues     []report.QualityIssue
		contributions []report.SegmentContribution
	)

	g, gctx := errgroup.WithContext(ctx)
	if hasTimeseries(profile) {
		g.Go(func() error {
			analyzer := trend.NewAnalyzer()
			trends = analyzer.AnalyzeTrends(tbl, profile.DateColumn, profile.KPIs)
			changePoints = analyzer.DetectChangePoints(tbl, profile.DateColumn, profile.KPIs)
			dailyDeltas = analyzer.LargestDailyDeltas(tbl, profile.DateColumn, profile.KPIs)
			return nil
		})
	}
	if hasExperiment(profile) {
		g.Go(func() error {
			analyzer := experiment.NewAnalyzer(experiment.Options{
				BootstrapResamples: s.cfg.BootstrapResamples,
				BootstrapWorkers:   s.cfg.BootstrapWorkers,
			})
			experiments, expIssues = analyzer.Analyze(gctx, tbl, profile)
			return nil
		})
	}
	if len(profile.SegmentColumns) > 0 {
		g.Go(func() error {
			contributions = segments.NewAnalyzer().Analyze(tbl, profile)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	profile.QualityIssues = append(profile.QualityIssues, expIssues...)

	findings := insights.Findings{
		Profile:      profile,
		Trends:       trends,
		ChangePoints: changePoints,
		Experiments:  experiments,
		Segments:     contributions,
	}
	gen := insights.NewGenerator()
	hypotheses := gen.Hypotheses(findings)
	decisions := gen.Decisions(findings)
	nextChecks := gen.NextChecks(findings)

	rep := &report.AnalysisReport{
		ID: core.NewReportID(),
		ExecutiveSummary: report.ExecutiveSummary{
			RowCount:    profile.RowCount,
			ColumnCount: profile.ColumnCount,
			DataMode:    profile.DataMode,
			TimeRange:   profile.TimeRange,
			Bullets:     gen.SummaryBullets(findings, hypotheses, decisions),
		},
		Profile:      *profile,
		KPIs:         profile.KPIs,
		Trends:       trends,
		ChangePoints: orderByDate(changePoints),
		DailyDeltas:  dailyDeltas,
		Experiments:  experiments,
		Segments:     contributions,
		Hypotheses:   hypotheses,
		Decisions:    decisions,
		NextChecks:   nextChecks,
		Metadata: report.Metadata{
			Filename:       req.Filename,
			FileSizeBytes:  len(req.Raw),
			Transformation: ingested.Ledger,
		},
		GeneratedAt: core.Now(),
	}

	s.enhance(ctx, rep)
	s.store(ctx, rep)
	return rep, nil
}

// Preview runs detection only, showing callers what a full analysis
// would do to their file without committing to it
func (s *AnalysisService) Preview(req AnalyzeRequest) (*report.Preview, error) {
	opts := ingest.Options{MaxBytes: req.MaxBytes, AutoTransform: s.cfg.AutoTransform && !req.DisableTransform}
	if excel.IsWorkbook(req.Raw) {
		ingested, err := excel.ReadWorkbook(req.Raw, opts)
		if err != nil {
			return nil, err
		}
		return ingest.PreviewFromResult(ingested), nil
	}
	return ingest.Preview(req.Raw, opts, 5)
}

func (s *AnalysisService) ingest(req AnalyzeRequest) (*ingest.Result, error) {
	opts := ingest.Options{MaxBytes: req.MaxBytes, AutoTransform: s.cfg.AutoTransform && !req.DisableTransform}
	if excel.IsWorkbook(req.Raw) || strings.HasSuffix(strings.ToLower(req.Filename), ".xlsx") {
		return excel.ReadWorkbook(req.Raw, opts)
	}
	return ingest.Ingest(req.Raw, opts)
}

// enhance rewrites hypothesis and decision wording when an enhancer is
// configured. Failures are silent: the deterministic text stands.
func (s *AnalysisService) enhance(ctx context.Context, rep *report.AnalysisReport) {
	if s.enhancer == nil || (len(rep.Hypotheses) == 0 && len(rep.Decisions) == 0) {
		return
	}
	rewriteReq := ports.RewriteRequest{
		DatasetSummary: strings.Join(rep.ExecutiveSummary.Bullets, "; "),
	}
	for _, h := range rep.Hypotheses {
		rewriteReq.Hypotheses = append(rewriteReq.Hypotheses, h.Description)
	}
	for _, d := range rep.Decisions {
		rewriteReq.Decisions = append(rewriteReq.Decisions, d.Rationale)
	}

	resp, err := s.enhancer.Rewrite(ctx, rewriteReq)
	if err != nil {
		log.Printf("[AnalysisService] enhancement skipped: %v", err)
		return
	}
	for i := range rep.Hypotheses {
		if text := strings.TrimSpace(resp.Hypotheses[i]); text != "" {
			rep.Hypotheses[i].Description = text
		}
	}
	for i := range rep.Decisions {
		if text := strings.TrimSpace(resp.Decisions[i]); text != "" {
			rep.Decisions[i].Rationale = text
		}
	}
	rep.EnhancementApplied = true
}

// store archives the finished report best-effort
func (s *AnalysisService) store(ctx context.Context, rep *report.AnalysisReport) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, rep); err != nil {
		log.Printf("[AnalysisService] archive save failed for %s: %v", rep.ID, err)
	}
}

func hasTimeseries(profile *report.Profile) bool {
	return profile.DateColumn != "" &&
		(profile.DataMode == report.ModeTimeseries || profile.DataMode == report.ModeBoth)
}

func hasExperiment(profile *report.Profile) bool {
	return profile.GroupColumn != "" &&
		(profile.DataMode == report.ModeExperiment || profile.DataMode == report.ModeBoth)
}

// orderByDate presents change points chronologically in the report body;
// ranking by magnitude already decided which survived the cap
func orderByDate(cps []report.ChangePoint) []report.ChangePoint {
	sort.SliceStable(cps, func(i, j int) bool {
		if !cps[i].Date.Equal(cps[j].Date) {
			return cps[i].Date.Before(cps[j].Date)
		}
		return cps[i].KPI < cps[j].KPI
	})
	return cps
}
