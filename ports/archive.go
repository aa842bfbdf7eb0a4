package ports

import (
	"context"

	"metriscope/domain/core"
	"metriscope/domain/report"
)

// ArchiveEntry is the listing row for a stored report
type ArchiveEntry struct {
	ID        core.ReportID  `json:"report_id"`
	Filename  string         `json:"filename,omitempty"`
	DataMode  string         `json:"data_mode"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// ReportArchive persists finished reports for later retrieval. Only the
// structured findings are stored, never the uploaded table, preserving
// the process-in-memory contract.
type ReportArchive interface {
	Save(ctx context.Context, rep *report.AnalysisReport) error
	Get(ctx context.Context, id core.ReportID) (*report.AnalysisReport, error)
	Recent(ctx context.Context, limit int) ([]ArchiveEntry, error)
}
