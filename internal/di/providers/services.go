package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/domain"
	"github.com/beatvault/beatvault-server/internal/logger"
	"github.com/beatvault/beatvault-server/internal/popularity"
	"github.com/beatvault/beatvault-server/internal/service"
	"github.com/beatvault/beatvault-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideAggregator provides the popularity aggregator with the default tier table.
func ProvideAggregator(i do.Injector) (*popularity.Aggregator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return popularity.NewAggregator(storeHandle.LedgerStore, domain.DefaultTierTable(), log.Logger), nil
}

// ProvideLicenseService provides the license issuer.
func ProvideLicenseService(i do.Injector) (*service.LicenseService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	aggregator := do.MustInvoke[*popularity.Aggregator](i)
	documents := do.MustInvoke[*certificate.Storage](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewLicenseService(
		storeHandle.LedgerStore,
		aggregator,
		documents,
		indexHandle.SearchIndex,
		sseHandle.Manager,
		validator,
		service.LicenseServiceConfig{
			IDPrefix:     cfg.License.IDPrefix,
			IssueTimeout: cfg.License.IssueTimeout,
		},
		log.Logger,
	), nil
}

// ProvideLedgerService provides the read side of the ledger.
func ProvideLedgerService(i do.Injector) (*service.LedgerService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	documents := do.MustInvoke[*certificate.Storage](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewLedgerService(storeHandle.LedgerStore, documents, indexHandle.SearchIndex, log.Logger), nil
}

// RebuildSearchIndexIfNeeded repopulates an empty search index from the license index.
// Should be called after all services are wired.
func RebuildSearchIndexIfNeeded(i do.Injector) {
	ledgerService := do.MustInvoke[*service.LedgerService](i)
	log := do.MustInvoke[*logger.Logger](i)

	go func() {
		n, err := ledgerService.EnsureSearchIndex(context.Background())
		if err != nil {
			log.Error("Search index rebuild failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("Search index rebuilt", "documents", n)
		}
	}()
}
