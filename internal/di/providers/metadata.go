package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/metadata/openlibrary"
	"github.com/listenupapp/stagehand/internal/metrics"
)

// CatalogClientHandle wraps the Open Library client with shutdown capability.
type CatalogClientHandle struct {
	*openlibrary.Client
}

// Shutdown implements do.Shutdownable.
func (h *CatalogClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideCatalogClient provides the external catalog client.
func ProvideCatalogClient(i do.Injector) (*CatalogClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	client, err := openlibrary.New(openlibrary.Options{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: cfg.Catalog.Timeout,
		RPS:     cfg.Catalog.RPS,
		Burst:   cfg.Catalog.Burst,
	}, log.Component("openlibrary"))
	if err != nil {
		return nil, err
	}
	client.SetObserver(m.Catalog)

	log.Info("Catalog client initialized", "base_url", cfg.Catalog.BaseURL, "rps", cfg.Catalog.RPS)

	return &CatalogClientHandle{Client: client}, nil
}
