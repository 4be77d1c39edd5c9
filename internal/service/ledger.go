package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/store"
)

// LedgerService answers read-only questions about the ledger and license index.
// A missing asset or license is never an error.
type LedgerService struct {
	store     store.LedgerStore
	documents *certificate.Storage
	index     *search.SearchIndex
	logger    *slog.Logger
}

// NewLedgerService creates a ledger query service. documents and index may be nil,
// which disables document verification and search respectively.
func NewLedgerService(ledger store.LedgerStore, documents *certificate.Storage, index *search.SearchIndex, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LedgerService{
		store:     ledger,
		documents: documents,
		index:     index,
		logger:    logger,
	}
}

// GetStats returns the popularity record for assetID.
func (s *LedgerService) GetStats(ctx context.Context, assetID string) (*domain.PopularityRecord, bool, error) {
	return s.store.GetPopularity(ctx, strings.TrimSpace(assetID))
}

// HasStats reports whether assetID has ever been licensed.
func (s *LedgerService) HasStats(ctx context.Context, assetID string) (bool, error) {
	_, ok, err := s.GetStats(ctx, assetID)
	return ok, err
}

// TopN returns the n most popular assets, ordered by score desc, then most
// recently licensed, then asset ID asc. n <= 0 yields an empty slice.
// Any corrupt record fails the whole query.
func (s *LedgerService) TopN(ctx context.Context, n int) ([]*domain.PopularityRecord, error) {
	if n <= 0 {
		return []*domain.PopularityRecord{}, nil
	}

	var records []*domain.PopularityRecord
	for rec, err := range s.store.ListPopularity(ctx) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	slices.SortFunc(records, compareRank)

	if len(records) > n {
		records = records[:n]
	}
	if records == nil {
		records = []*domain.PopularityRecord{}
	}
	return records, nil
}

func compareRank(a, b *domain.PopularityRecord) int {
	if a.PopularityScore != b.PopularityScore {
		return b.PopularityScore - a.PopularityScore
	}
	if c := b.LastLicensedAt.Compare(a.LastLicensedAt); c != 0 {
		return c
	}
	return strings.Compare(a.AssetID, b.AssetID)
}

// GetLicense returns the index entry for an exact license ID.
func (s *LedgerService) GetLicense(ctx context.Context, licenseID string) (*domain.LicenseEntry, bool, error) {
	return s.store.GetLicense(ctx, strings.TrimSpace(licenseID))
}

// ResolveLicenseDocument returns the document location for an exact license ID.
// Partial IDs never match.
func (s *LedgerService) ResolveLicenseDocument(ctx context.Context, licenseID string) (string, bool, error) {
	entry, ok, err := s.GetLicense(ctx, licenseID)
	if err != nil || !ok {
		return "", false, err
	}
	return entry.DocumentPath, true, nil
}

// VerifyLicenseDocument re-hashes the stored document and compares it with
// the fingerprint recorded at issuance.
func (s *LedgerService) VerifyLicenseDocument(ctx context.Context, licenseID string) (bool, error) {
	entry, ok, err := s.GetLicense(ctx, licenseID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, domainerrors.NotFoundf("license %s not found", licenseID)
	}
	if s.documents == nil {
		return false, domainerrors.Internalf("document storage not configured")
	}

	match, err := s.documents.Verify(entry.DocumentPath, entry.Fingerprint)
	if err != nil {
		return false, domainerrors.StoreUnavailable(err, "read certificate document")
	}
	return match, nil
}

// SearchLicenses runs a full-text search over issued certificates.
// Results are for discovery only; resolve documents by exact ID.
func (s *LedgerService) SearchLicenses(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if s.index == nil {
		return &search.SearchResult{Query: params.Query, Hits: []search.SearchHit{}}, nil
	}
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search licenses")
	}
	return result, nil
}

// EnsureSearchIndex repopulates an empty search index from the license index.
// It returns the number of certificates indexed.
func (s *LedgerService) EnsureSearchIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	count, err := s.index.DocumentCount()
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "count search documents")
	}
	if count > 0 {
		return 0, nil
	}

	var docs []*search.CertificateDocument
	for entry, err := range s.store.ListLicenses(ctx) {
		if err != nil {
			return 0, err
		}
		docs = append(docs, search.FromEntry(entry))
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "rebuild search index")
	}

	s.logger.Info("search index rebuilt from license index", "documents", len(docs))
	return len(docs), nil
}
