// Package di provides dependency injection configuration for the staging service.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/auth"
	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/di/providers"
	"github.com/listenupapp/stagehand/internal/engagement"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/search"
	"github.com/listenupapp/stagehand/internal/staging"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvidePendingStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// External catalog
	do.Provide(injector, providers.ProvideCatalogClient)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Saga and search
	do.Provide(injector, providers.ProvideEngagementChecker)
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideSearchMerger)

	// Workers
	do.Provide(injector, providers.ProvideSweepJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.PendingStoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.CatalogClientHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*engagement.Checker](injector)
	_ = do.MustInvoke[*staging.Coordinator](injector)
	_ = do.MustInvoke[*search.Merger](injector)

	// Workers
	_ = do.MustInvoke[*providers.SweepJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.RebuildSearchIndexIfNeeded(injector)

	return nil
}
