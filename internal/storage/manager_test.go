package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

func TestManager_InitAndAccessors(t *testing.T) {
	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "badger")
	logger := common.NewLogger("error")

	mgr, err := NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if mgr.DataPath() != cfg.Storage.Path {
		t.Errorf("expected data path %s, got %s", cfg.Storage.Path, mgr.DataPath())
	}

	ctx := context.Background()

	// Every table accessor is wired to the same live store.
	if _, err := mgr.EarningsStorage().Upsert(ctx, &models.EarningsRecord{Symbol: "AAPL", ReportDate: "2024-04-25"}); err != nil {
		t.Errorf("earnings table unusable: %v", err)
	}
	obs := &models.QuoteObservation{Symbol: "AAPL", SymbolResolved: true}
	obs.Refresh()
	if _, err := mgr.QuoteStorage().Upsert(ctx, obs); err != nil {
		t.Errorf("quote table unusable: %v", err)
	}
	if _, err := mgr.ReportStorage().Upsert(ctx, &models.ReconciledReport{Symbol: "AAPL"}); err != nil {
		t.Errorf("report table unusable: %v", err)
	}
	if err := mgr.RunStatusStorage().Save(ctx, &models.PipelineRunStatus{Job: models.JobPipeline, Status: models.RunStatusIdle}); err != nil {
		t.Errorf("run status table unusable: %v", err)
	}
	if err := mgr.KVStorage().Set(ctx, "k", "v"); err != nil {
		t.Errorf("kv table unusable: %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
