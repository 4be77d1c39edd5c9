package api

import (
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/service"
	"github.com/beatvault/beatvault-server/internal/sse"
	"github.com/beatvault/beatvault-server/internal/store"
)

// Services groups what the handlers depend on.
type Services struct {
	License *service.LicenseService
	Ledger  *service.LedgerService

	// Health checks only.
	Store  store.LedgerStore
	Search *search.SearchIndex
	SSE    *sse.Manager
}
