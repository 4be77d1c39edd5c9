package providers

import (
	"github.com/samber/do/v2"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/logger"
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/store"
	"github.com/beatvault/beatvault-server/internal/store/sqlite"
)

// StoreHandle wraps the ledger store with shutdown capability.
type StoreHandle struct {
	store.LedgerStore
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the ledger store for the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.LedgerPath()

	var (
		ledger store.LedgerStore
		err    error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		ledger, err = sqlite.Open(path, log.Logger)
	default:
		ledger, err = store.New(path, log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Ledger store initialized", "backend", cfg.Storage.Backend, "path", path)

	return &StoreHandle{LedgerStore: ledger}, nil
}

// ProvideCertificateStorage provides the certificate document directory.
func ProvideCertificateStorage(i do.Injector) (*certificate.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := certificate.NewStorage(cfg.CertificatesPath())
	if err != nil {
		return nil, err
	}

	log.Info("Certificate storage initialized", "path", storage.Dir())
	return storage, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve certificate index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.SearchIndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}
