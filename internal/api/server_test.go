package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriscope/app"
	"metriscope/domain/core"
	"metriscope/domain/report"
	"metriscope/internal/config"
	"metriscope/internal/testkit"
	"metriscope/ports"
)

type fakeArchive struct {
	reports map[core.ReportID]*report.AnalysisReport
}

func (f *fakeArchive) Save(_ context.Context, rep *report.AnalysisReport) error {
	if f.reports == nil {
		f.reports = map[core.ReportID]*report.AnalysisReport{}
	}
	f.reports[rep.ID] = rep
	return nil
}

func (f *fakeArchive) Get(_ context.Context, id core.ReportID) (*report.AnalysisReport, error) {
	return f.reports[id], nil
}

func (f *fakeArchive) Recent(_ context.Context, limit int) ([]ports.ArchiveEntry, error) {
	var entries []ports.ArchiveEntry
	for id, rep := range f.reports {
		entries = append(entries, ports.ArchiveEntry{
			ID:       id,
			Filename: rep.Metadata.Filename,
			DataMode: string(rep.Profile.DataMode),
		})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func newTestServer(archive ports.ReportArchive) *Server {
	cfg := config.ServerConfig{Port: "0", MaxInputBytes: 1 << 20}
	svc := app.NewAnalysisService(config.AnalysisConfig{
		BootstrapResamples: 200,
		BootstrapWorkers:   2,
		WallClockBudget:    30 * time.Second,
		AutoTransform:      true,
	}, nil, archive)
	return NewServer(cfg, svc, archive)
}

func timeseriesBody(t *testing.T) []byte {
	t.Helper()
	return testkit.NewGenerator(3).TimeseriesCSV(60, 100, 40, 30)
}

func multipartUpload(t *testing.T, filename string, raw []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(raw)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyzeMultipart(t *testing.T) {
	srv := newTestServer(nil)
	buf, contentType := multipartUpload(t, "metrics.csv", timeseriesBody(t))

	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep report.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "metrics.csv", rep.Metadata.Filename)
	assert.Equal(t, report.ModeTimeseries, rep.Profile.DataMode)
	assert.NotEmpty(t, rep.KPIs)
	assert.NotEmpty(t, rep.Trends)
}

func TestAnalyzeRawBody(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(timeseriesBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestAnalyzeMarkdownFormat(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze?format=markdown", bytes.NewReader(timeseriesBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Analysis Report")
}

func TestAnalyzeBadExtension(t *testing.T) {
	srv := newTestServer(nil)
	buf, contentType := multipartUpload(t, "malware.exe", []byte("a,b\n1,2\n"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestAnalyzeEmptyBody(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeQuickShape(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze/quick", bytes.NewReader(timeseriesBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var quick report.QuickReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quick))
	assert.NotEmpty(t, quick.KPIs)
	assert.LessOrEqual(t, len(quick.KPIs), 5)
	assert.LessOrEqual(t, len(quick.TopTrends), 5)
	assert.LessOrEqual(t, len(quick.TopChangePoints), 3)
	assert.LessOrEqual(t, len(quick.Decisions), 2)
}

func TestPreviewEndpoint(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/preview", bytes.NewReader(timeseriesBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var prev report.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prev))
	assert.Equal(t, 60, prev.OriginalRows)
	assert.Contains(t, prev.StandardizedColumns, "revenue")
}

func TestReportsWithoutArchive(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportsRoundTrip(t *testing.T) {
	arch := &fakeArchive{}
	srv := newTestServer(arch)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(timeseriesBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rep report.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []ports.ArchiveEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+string(rep.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched report.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, rep.ID, fetched.ID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
