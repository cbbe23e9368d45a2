package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/earnboard/earnboard/internal/app"
	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
	"github.com/earnboard/earnboard/internal/storage"
)

type fakePipeline struct {
	statuses []*models.PipelineRunStatus
	runErr   error
}

func (f *fakePipeline) RunCycle(_ context.Context, _ bool) (*models.PipelineRunStatus, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.PipelineRunStatus{Job: models.JobPipeline, Status: models.RunStatusSuccess}, nil
}

func (f *fakePipeline) RunJob(_ context.Context, job string, _ time.Time) (*models.PipelineRunStatus, error) {
	return &models.PipelineRunStatus{Job: job, Status: models.RunStatusSuccess}, nil
}

func (f *fakePipeline) Status(_ context.Context) ([]*models.PipelineRunStatus, error) {
	return f.statuses, nil
}

func (f *fakePipeline) Start(_ context.Context) error { return nil }
func (f *fakePipeline) Stop()                         {}

func newTestServer(t *testing.T, pipe *fakePipeline) (*Server, *app.App) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "badger")
	logger := common.NewLogger("error")

	mgr, err := storage.NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	a := &app.App{
		Config:      cfg,
		Logger:      logger,
		Storage:     mgr,
		Pipeline:    pipe,
		StartupTime: time.Now(),
	}
	return NewServer(a), a
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	pipe := &fakePipeline{statuses: []*models.PipelineRunStatus{
		{Job: models.JobPipeline, Status: models.RunStatusSuccess},
	}}
	srv, _ := newTestServer(t, pipe)

	rec := get(t, srv, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected ok, got %v", body["status"])
	}
}

func TestHandleHealth_StuckRunDegrades(t *testing.T) {
	pipe := &fakePipeline{statuses: []*models.PipelineRunStatus{
		{
			Job:       models.JobPipeline,
			Status:    models.RunStatusRunning,
			StartedAt: time.Now().Add(-2 * time.Hour),
		},
	}}
	srv, _ := newTestServer(t, pipe)

	rec := get(t, srv, "/api/health")
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected degraded for stuck run, got %v", body["status"])
	}
	jobs := body["jobs"].(map[string]interface{})
	if jobs[models.JobPipeline] != "stuck" {
		t.Errorf("expected stuck job state, got %v", jobs)
	}
}

func TestHandleHealth_QuoteFreshness(t *testing.T) {
	pipe := &fakePipeline{statuses: []*models.PipelineRunStatus{
		{
			Job:        models.JobQuoteFeed,
			Status:     models.RunStatusSuccess,
			FinishedAt: time.Now().Add(-time.Hour),
		},
	}}
	srv, _ := newTestServer(t, pipe)

	rec := get(t, srv, "/api/health")
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("stale quotes should not degrade health, got %v", body["status"])
	}
	if fresh, ok := body["quotes_fresh"].(bool); !ok || fresh {
		t.Errorf("expected quotes_fresh=false, got %v", body["quotes_fresh"])
	}
}

func TestHandleReportList_OrderAndFilter(t *testing.T) {
	srv, a := newTestServer(t, &fakePipeline{})
	ctx := context.Background()

	seed := []*models.ReconciledReport{
		{Symbol: "MSFT", SizeBucket: models.SizeMega},
		{Symbol: "AAPL", SizeBucket: models.SizeMega},
		{Symbol: "PLUG", SizeBucket: models.SizeSmall},
	}
	for _, r := range seed {
		if _, err := a.Storage.ReportStorage().Upsert(ctx, r); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	rec := get(t, srv, "/api/reports")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Count   int                        `json:"count"`
		Reports []*models.ReconciledReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Count != 3 {
		t.Fatalf("expected 3 reports, got %d", body.Count)
	}
	if body.Reports[0].Symbol != "AAPL" || body.Reports[1].Symbol != "MSFT" || body.Reports[2].Symbol != "PLUG" {
		t.Errorf("expected symbol order, got %s %s %s",
			body.Reports[0].Symbol, body.Reports[1].Symbol, body.Reports[2].Symbol)
	}

	rec = get(t, srv, "/api/reports?size_bucket=mega")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("expected 2 mega reports, got %d", body.Count)
	}
}

func TestHandleReportGet(t *testing.T) {
	srv, a := newTestServer(t, &fakePipeline{})
	ctx := context.Background()

	cap := models.BigIntPtr(2_600_000_000_000)
	if _, err := a.Storage.ReportStorage().Upsert(ctx, &models.ReconciledReport{Symbol: "AAPL", MarketCap: cap}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rec := get(t, srv, "/api/reports/aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Big integers cross the wire as strings.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(raw["market_cap"]) != `"2600000000000"` {
		t.Errorf("expected quoted market cap, got %s", raw["market_cap"])
	}

	rec = get(t, srv, "/api/reports/NOPE")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePipelineRun(t *testing.T) {
	srv, _ := newTestServer(t, &fakePipeline{})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// GET is rejected.
	rec = get(t, srv, "/api/pipeline/run")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandlePipelineRun_Conflict(t *testing.T) {
	srv, _ := newTestServer(t, &fakePipeline{runErr: models.ErrRunInProgress})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandlePipelineStatus(t *testing.T) {
	pipe := &fakePipeline{statuses: []*models.PipelineRunStatus{
		{Job: models.JobEarningsFeed, Status: models.RunStatusSuccess},
		{Job: models.JobPipeline, Status: models.RunStatusSuccess},
	}}
	srv, _ := newTestServer(t, pipe)

	rec := get(t, srv, "/api/pipeline/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Jobs []*models.PipelineRunStatus `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(body.Jobs))
	}
}
