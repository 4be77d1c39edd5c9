// Package di provides dependency injection configuration for the BeatVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/di/providers"
	"github.com/beatvault/beatvault-server/internal/logger"
	"github.com/beatvault/beatvault-server/internal/popularity"
	"github.com/beatvault/beatvault-server/internal/service"
	"github.com/beatvault/beatvault-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCertificateStorage)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Events
	do.Provide(injector, providers.ProvideSSEManager)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAggregator)
	do.Provide(injector, providers.ProvideLicenseService)
	do.Provide(injector, providers.ProvideLedgerService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*certificate.Storage](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*popularity.Aggregator](injector)
	_ = do.MustInvoke[*service.LicenseService](injector)
	_ = do.MustInvoke[*service.LedgerService](injector)

	providers.RebuildSearchIndexIfNeeded(injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
