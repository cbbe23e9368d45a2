// Package storage provides the top-level StorageManager coordinating the
// earnings, quote, report, run-status, and KV tables over one embedded store.
package storage

import (
	"fmt"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a single BadgerHold store.
type Manager struct {
	store    *badger.Store
	earnings interfaces.EarningsStorage
	quotes   interfaces.QuoteStorage
	reports  interfaces.ReportStorage
	runs     interfaces.RunStatusStorage
	kv       interfaces.KeyValueStorage
	dataPath string
	logger   *common.Logger
}

// NewManager creates a StorageManager rooted at the configured data path.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:    store,
		earnings: badger.NewEarningsStorage(store, logger),
		quotes:   badger.NewQuoteStorage(store, logger),
		reports:  badger.NewReportStorage(store, logger),
		runs:     badger.NewRunStatusStorage(store, logger),
		kv:       badger.NewKVStorage(store, logger),
		dataPath: config.Storage.Path,
		logger:   logger,
	}, nil
}

func (m *Manager) EarningsStorage() interfaces.EarningsStorage {
	return m.earnings
}

func (m *Manager) QuoteStorage() interfaces.QuoteStorage {
	return m.quotes
}

func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.reports
}

func (m *Manager) RunStatusStorage() interfaces.RunStatusStorage {
	return m.runs
}

func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) DataPath() string {
	return m.dataPath
}

func (m *Manager) Close() error {
	return m.store.Close()
}
