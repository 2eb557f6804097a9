package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/engagement"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/staging"
)

// ProvideMetrics provides the Prometheus collector set.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideEngagementChecker provides the engagement checker.
func ProvideEngagementChecker(i do.Injector) (*engagement.Checker, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pendingHandle := do.MustInvoke[*PendingStoreHandle](i)

	return engagement.New(storeHandle.Store, pendingHandle.Store, log.Component("engagement")), nil
}

// ProvideCoordinator provides the staging coordinator.
func ProvideCoordinator(i do.Injector) (*staging.Coordinator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pendingHandle := do.MustInvoke[*PendingStoreHandle](i)
	catalog := do.MustInvoke[*CatalogClientHandle](i)
	checker := do.MustInvoke[*engagement.Checker](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	// The search index must be wired to the store before the first import.
	_ = do.MustInvoke[*SearchIndexHandle](i)

	return staging.NewCoordinator(
		storeHandle.Store,
		catalog.Client,
		pendingHandle.Store,
		checker,
		m,
		staging.Config{PendingTTL: cfg.Staging.PendingTTL},
		log.Component("staging"),
	), nil
}
