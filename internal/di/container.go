// Package di provides dependency injection configuration for the ffserve server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/di/providers"
	"github.com/ffmirror/ffserve/internal/fetch"
	"github.com/ffmirror/ffserve/internal/logger"
	"github.com/ffmirror/ffserve/internal/service"
	"github.com/ffmirror/ffserve/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideQueue)

	// Fetching
	do.Provide(injector, providers.ProvideFetcher)
	do.Provide(injector, providers.ProvideFetchWorker)

	// Business services
	do.Provide(injector, providers.ProvideListingService)
	do.Provide(injector, providers.ProvideStoryService)
	do.Provide(injector, providers.ProvideFavoriteService)

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

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.QueueHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*fetch.HTTPFetcher](injector)

	// Workers
	_ = do.MustInvoke[*providers.FetchWorkerHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.ListingService](injector)
	_ = do.MustInvoke[*service.StoryService](injector)
	_ = do.MustInvoke[*service.FavoriteService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
