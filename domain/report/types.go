package report

import (
	"metriscope/domain/core"
	"metriscope/domain/table"
)

// Confidence is the calibrated trust tier attached to every hypothesis,
// decision, and change point. It is never silently upgraded when evidence
// is combined.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Min returns the weaker of two confidence tiers
func (c Confidence) Min(other Confidence) Confidence {
	if c.rank() >= other.rank() {
		return c
	}
	return other
}

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// DataMode describes which analyses the dataset supports
type DataMode string

const (
	ModeTimeseries DataMode = "timeseries"
	ModeExperiment DataMode = "experiment"
	ModeBoth       DataMode = "both"
	ModeStatic     DataMode = "static"
)

// TrendDirection labels the overall movement of a KPI series
type TrendDirection string

const (
	DirectionIncreasing TrendDirection = "increasing"
	DirectionDecreasing TrendDirection = "decreasing"
	DirectionStable     TrendDirection = "stable"
	DirectionVolatile   TrendDirection = "volatile"
)

// KPIKind is the business-semantic class of a metric column
type KPIKind string

const (
	KindRate     KPIKind = "rate"
	KindCount    KPIKind = "count"
	KindMoney    KPIKind = "money"
	KindDuration KPIKind = "duration"
)

// KPI is a numeric column deemed business-meaningful
type KPI struct {
	Name        string  `json:"name"`
	Kind        KPIKind `json:"kind"`
	Unit        string  `json:"unit,omitempty"`
	Numerator   string  `json:"numerator,omitempty"`
	Denominator string  `json:"denominator,omitempty"`
	IsPrimary   bool    `json:"is_primary"`
}

// ColumnProfile summarizes one column after ingestion. Immutable once the
// profiler has run.
type ColumnProfile struct {
	Name          string           `json:"name"`
	InferredType  table.ColumnType `json:"inferred_type"`
	SemanticType  string           `json:"semantic_type"`
	MissingRatio  float64          `json:"missing_ratio"`
	DistinctCount int              `json:"distinct_count"`
	SampleValues  []string         `json:"sample_values,omitempty"`
	Mean          *float64         `json:"mean,omitempty"`
	StdDev        *float64         `json:"std_dev,omitempty"`
	Min           *float64         `json:"min,omitempty"`
	Max           *float64         `json:"max,omitempty"`
	Median        *float64         `json:"median,omitempty"`
}

// IssueSeverity grades a quality issue
type IssueSeverity string

const (
	SeverityHigh   IssueSeverity = "high"
	SeverityMedium IssueSeverity = "medium"
	SeverityLow    IssueSeverity = "low"
)

// QualityIssue is a named, non-fatal data problem
type QualityIssue struct {
	Kind        string        `json:"kind"`
	Column      string        `json:"column,omitempty"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
}

// TimeRange bounds the dataset's date column
type TimeRange struct {
	Start core.Day `json:"start"`
	End   core.Day `json:"end"`
	Days  int      `json:"days"`
}

// Profile is the full profiler output for one analysis run
type Profile struct {
	RowCount       int             `json:"row_count"`
	ColumnCount    int             `json:"column_count"`
	DuplicateCount int             `json:"duplicate_count"`
	DateColumn     string          `json:"date_column,omitempty"`
	GroupColumn    string          `json:"group_column,omitempty"`
	TimeRange      *TimeRange      `json:"time_range,omitempty"`
	DataMode       DataMode        `json:"data_mode"`
	Columns        []ColumnProfile `json:"columns"`
	KPIs           []KPI           `json:"kpis"`
	SegmentColumns []string        `json:"segment_columns"`
	QualityIssues  []QualityIssue  `json:"quality_issues"`
}

// Trend summarizes a KPI's movement over the whole series. recent vs
// overall percentages use displayed-percent units throughout.
type Trend struct {
	KPI              string         `json:"kpi"`
	Direction        TrendDirection `json:"direction"`
	OverallChangePct *float64       `json:"overall_change_pct,omitempty"`
	RecentChangePct  *float64       `json:"recent_change_pct,omitempty"`
	DeltaSign        int            `json:"delta_sign,omitempty"`
	Description      string         `json:"description"`
}

// ChangePoint marks a date where rolling-window statistics shifted
type ChangePoint struct {
	KPI        string     `json:"kpi"`
	Date       core.Day   `json:"date"`
	BeforeMean float64    `json:"before_mean"`
	AfterMean  float64    `json:"after_mean"`
	DeltaPct   float64    `json:"delta_pct"`
	Confidence Confidence `json:"confidence"`
}

// DailyDelta is a single large day-over-day spike or drop
type DailyDelta struct {
	KPI      string   `json:"kpi"`
	Date     core.Day `json:"date"`
	Value    float64  `json:"value"`
	DeltaPct float64  `json:"delta_pct"`
	Kind     string   `json:"kind"` // spike or drop
}

// WarningKind names an experiment quality concern
type WarningKind string

const (
	WarnSmallSample   WarningKind = "small_sample"
	WarnHighVariance  WarningKind = "high_variance"
	WarnShortDuration WarningKind = "short_duration"
	WarnUnequalGroups WarningKind = "unequal_groups"
)

// ExperimentResult holds the controlled-comparison statistics for one KPI
// against one test variant
type ExperimentResult struct {
	KPI            string        `json:"kpi"`
	ControlVariant string        `json:"control_variant"`
	TestVariant    string        `json:"test_variant"`
	ControlMean    float64       `json:"control_mean"`
	TestMean       float64       `json:"test_mean"`
	ControlStd     float64       `json:"control_std"`
	TestStd        float64       `json:"test_std"`
	ControlCount   int           `json:"control_count"`
	TestCount      int           `json:"test_count"`
	UpliftPct      *float64      `json:"uplift_pct,omitempty"`
	UpliftSign     int           `json:"uplift_sign,omitempty"`
	CILower        float64       `json:"ci_lower"`
	CIUpper        float64       `json:"ci_upper"`
	PValue         float64       `json:"p_value"`
	Significant    bool          `json:"significant"`
	Warnings       []WarningKind `json:"warnings,omitempty"`
	RequiredPerArm int           `json:"required_per_arm,omitempty"`
}

// SegmentContribution attributes a share of a KPI delta to one segment value
type SegmentContribution struct {
	SegmentColumn   string  `json:"segment_column"`
	SegmentValue    string  `json:"segment_value"`
	KPI             string  `json:"kpi"`
	ContributionAbs float64 `json:"contribution_abs"`
	ContributionPct float64 `json:"contribution_pct"`
	SegmentMean     float64 `json:"segment_mean"`
	SegmentSize     int     `json:"segment_size"`
	Direction       string  `json:"direction"` // up or down
	ZScore          float64 `json:"z_score"`
	Anomalous       bool    `json:"anomalous"`
}

// EvidenceKind names the source of a piece of evidence
type EvidenceKind string

const (
	EvidenceTrend       EvidenceKind = "trend"
	EvidenceChangePoint EvidenceKind = "change_point"
	EvidenceSegment     EvidenceKind = "segment"
	EvidenceExperiment  EvidenceKind = "experiment"
)

// Evidence is an ordered reference from a hypothesis to the finding that
// supports it
type Evidence struct {
	Kind    EvidenceKind `json:"kind"`
	KPI     string       `json:"kpi,omitempty"`
	Summary string       `json:"summary"`
}

// Hypothesis is a ranked explanation of what happened
type Hypothesis struct {
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence"`
	Evidence    []Evidence `json:"evidence"`
}

// Decision is a recommended action with its rationale and risks
type Decision struct {
	Decision   string     `json:"decision"`
	Kind       string     `json:"kind"` // ship, hold, iterate, investigate
	Confidence Confidence `json:"confidence"`
	Rationale  string     `json:"rationale"`
	Risks      []string   `json:"risks,omitempty"`
	KPIs       []string   `json:"kpis,omitempty"`
}

// NextCheck is a prioritized follow-up investigation
type NextCheck struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Priority string `json:"priority"`
	Why      string `json:"why"`
}

// ExecutiveSummary is the headline scalar block of the report
type ExecutiveSummary struct {
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	DataMode    DataMode   `json:"data_mode"`
	TimeRange   *TimeRange `json:"time_range,omitempty"`
	Bullets     []string   `json:"bullets,omitempty"`
}

// Metadata carries request-scoped details alongside the findings
type Metadata struct {
	Filename       string                 `json:"filename,omitempty"`
	FileSizeBytes  int                    `json:"file_size_bytes,omitempty"`
	Transformation *table.TransformLedger `json:"transformation_metadata,omitempty"`
}

// AnalysisReport aggregates every finding of one invocation. Built fresh
// per request; the engine keeps no state between invocations.
type AnalysisReport struct {
	ID                 ReportIDField         `json:"report_id"`
	ExecutiveSummary   ExecutiveSummary      `json:"executive_summary"`
	Profile            Profile               `json:"profile"`
	KPIs               []KPI                 `json:"kpis"`
	Trends             []Trend               `json:"top_trends"`
	ChangePoints       []ChangePoint         `json:"top_change_points"`
	DailyDeltas        []DailyDelta          `json:"largest_daily_deltas,omitempty"`
	Experiments        []ExperimentResult    `json:"experiment_results,omitempty"`
	Segments           []SegmentContribution `json:"segment_contributions,omitempty"`
	Hypotheses         []Hypothesis          `json:"top_hypotheses"`
	Decisions          []Decision            `json:"recommended_decisions"`
	NextChecks         []NextCheck           `json:"next_checks,omitempty"`
	Metadata           Metadata              `json:"metadata,omitempty"`
	GeneratedAt        core.Timestamp        `json:"generated_at"`
	EnhancementApplied bool                  `json:"enhancement_applied,omitempty"`
}

// ReportIDField aliases core.ReportID for JSON embedding
type ReportIDField = core.ReportID

// QuickReport is the reduced payload returned by the quick-analysis contract
type QuickReport struct {
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	KPIs             []KPI            `json:"kpis"`
	TopTrends        []Trend          `json:"top_trends"`
	TopChangePoints  []ChangePoint    `json:"top_change_points"`
	TopHypotheses    []Hypothesis     `json:"top_hypotheses"`
	Decisions        []Decision       `json:"recommended_decisions"`
}

// Quick reduces a full report to the quick-analysis shape
func (r *AnalysisReport) Quick() QuickReport {
	q := QuickReport{ExecutiveSummary: r.ExecutiveSummary}
	q.KPIs = head(r.KPIs, 5)
	q.TopTrends = head(r.Trends, 5)
	q.TopChangePoints = head(r.ChangePoints, 3)
	q.TopHypotheses = head(r.Hypotheses, 3)
	q.Decisions = head(r.Decisions, 2)
	return q
}

func head[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Preview is the secondary contract: what ingestion would do, without
// running the analysis
type Preview struct {
	DetectedFormat        table.DetectedFormat `json:"detected_format"`
	PlannedTransformation string               `json:"planned_transformation"`
	OriginalRows          int                  `json:"original_rows"`
	OriginalColumns       []string             `json:"original_columns"`
	StandardizedColumns   []string             `json:"standardized_columns"`
	DateColumn            string               `json:"date_column,omitempty"`
	NumericColumns        []string             `json:"numeric_columns"`
	SampleRows            []map[string]string  `json:"sample_rows"`
}
