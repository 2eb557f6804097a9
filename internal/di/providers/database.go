package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/store/sqlite"
)

// StoreHandle wraps the catalog store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite catalog store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Metadata.CatalogDBPath()
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Catalog database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// PendingStoreHandle wraps the pending action store with shutdown capability.
type PendingStoreHandle struct {
	*pending.Store
}

// Shutdown implements do.Shutdownable.
func (h *PendingStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvidePendingStore provides the Badger-backed pending action store.
func ProvidePendingStore(i do.Injector) (*PendingStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Metadata.PendingPath()
	ps, err := pending.Open(path, cfg.Staging.PendingTTL, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Pending action store initialized", "path", path, "ttl", cfg.Staging.PendingTTL)

	return &PendingStoreHandle{Store: ps}, nil
}
