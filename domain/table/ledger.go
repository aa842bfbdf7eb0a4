package table

// DetectedFormat classifies the shape of the raw input
type DetectedFormat string

const (
	FormatTimeseries   DetectedFormat = "timeseries"
	FormatEventLevel   DetectedFormat = "event_level"
	FormatWide         DetectedFormat = "wide"
	FormatAlreadyClean DetectedFormat = "already_clean"
)

// TransformLedger is the append-only audit log of one ingestion. Each stage
// records only the steps it actually performed, so the report's
// transformation metadata needs no shared logging infrastructure.
type TransformLedger struct {
	DetectedFormat     DetectedFormat `json:"detected_format"`
	TransformationType string         `json:"transformation_type"`
	Encoding           string         `json:"encoding"`
	Delimiter          string         `json:"delimiter"`
	OriginalRowCount   int            `json:"original_rows"`
	FinalRowCount      int            `json:"final_rows"`
	DateColumn         string         `json:"date_column,omitempty"`
	// ColumnMapping maps each normalized column name back to the source
	// header it came from
	ColumnMapping   map[string]string `json:"column_mapping,omitempty"`
	Transformations []string          `json:"transformations"`
	Steps           []string          `json:"steps"`
	Degraded        bool              `json:"degraded,omitempty"`
}

// Record appends a human-readable step to both the transformation list and
// the ordered step log
func (l *TransformLedger) Record(step string) {
	l.Transformations = append(l.Transformations, step)
	l.Steps = append(l.Steps, step)
}

// MarkDegraded flags that aggregation failed and the pre-aggregation table
// was kept instead
func (l *TransformLedger) MarkDegraded(reason string) {
	l.Degraded = true
	l.Record("aggregation degraded: " + reason)
}
