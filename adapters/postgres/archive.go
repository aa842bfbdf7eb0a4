package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"metriscope/domain/core"
	"metriscope/domain/report"
	apperrors "metriscope/internal/errors"
	"metriscope/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL DEFAULT '',
	data_mode   TEXT NOT NULL,
	report      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS analysis_reports_created_at_idx ON analysis_reports (created_at DESC);
`

// Archive stores finished reports as JSON documents. The uploaded table
// itself is never written anywhere.
type Archive struct {
	db *sqlx.DB
}

// NewArchive connects to Postgres and ensures the schema exists
func NewArchive(dsn string) (*Archive, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, apperrors.Archivef("connect: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Archivef("ensure schema: %v", err)
	}
	log.Printf("[Archive] Connected and schema ensured")
	return &Archive{db: db}, nil
}

// Close releases the connection pool
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save upserts one report document
func (a *Archive) Save(ctx context.Context, rep *report.AnalysisReport) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return apperrors.Archivef("marshal report %s: %v", rep.ID, err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO analysis_reports (id, filename, data_mode, report)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET report = EXCLUDED.report`,
		string(rep.ID), rep.Metadata.Filename, string(rep.Profile.DataMode), doc)
	if err != nil {
		return apperrors.Archivef("save report %s: %v", rep.ID, err)
	}
	return nil
}

// Get loads one report by ID, returning nil when absent
func (a *Archive) Get(ctx context.Context, id core.ReportID) (*report.AnalysisReport, error) {
	var doc []byte
	err := a.db.GetContext(ctx, &doc, `SELECT report FROM analysis_reports WHERE id = $1`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Archivef("load report %s: %v", id, err)
	}
	var rep report.AnalysisReport
	if err := json.Unmarshal(doc, &rep); err != nil {
		return nil, apperrors.Archivef("decode report %s: %v", id, err)
	}
	return &rep, nil
}

// Recent lists the newest stored reports
func (a *Archive) Recent(ctx context.Context, limit int) ([]ports.ArchiveEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows := []struct {
		ID        string         `db:"id"`
		Filename  string         `db:"filename"`
		DataMode  string         `db:"data_mode"`
		CreatedAt core.Timestamp `db:"created_at"`
	}{}
	err := a.db.SelectContext(ctx, &rows,
		`SELECT id, filename, data_mode, created_at FROM analysis_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.Archivef("list reports: %v", err)
	}
	entries := make([]ports.ArchiveEntry, len(rows))
	for i, r := range rows {
		entries[i] = ports.ArchiveEntry{
			ID:        core.ReportID(r.ID),
			Filename:  r.Filename,
			DataMode:  r.DataMode,
			CreatedAt: r.CreatedAt,
		}
	}
	return entries, nil
}

var _ ports.ReportArchive = (*Archive)(nil)
