package store

import (
	"context"
	"iter"

	"github.com/beatvault/beatvault-server/internal/domain"
)

// PopularityMutator computes the next record for an asset from the current one.
// current is nil when the asset has never been licensed; the mutator receives a
// private copy and may modify it in place.
type PopularityMutator func(current *domain.PopularityRecord) (*domain.PopularityRecord, error)

// LedgerStore persists popularity records and the license index.
//
// Implementations must serialize UpsertPopularity per asset ID and run the
// read-modify-write inside one transaction, so concurrent upserts on the same
// asset never lose an update. Upserts on different assets must not block each other.
type LedgerStore interface {
	// GetPopularity returns the record for assetID. A missing record is (nil, false, nil).
	GetPopularity(ctx context.Context, assetID string) (*domain.PopularityRecord, bool, error)
	// UpsertPopularity applies fn to the current record and persists the result atomically.
	UpsertPopularity(ctx context.Context, assetID string, fn PopularityMutator) (*domain.PopularityRecord, error)
	// ListPopularity enumerates every record from a snapshot taken when iteration starts.
	ListPopularity(ctx context.Context) iter.Seq2[*domain.PopularityRecord, error]

	// CreateLicense inserts an index entry, failing with DUPLICATE_LICENSE_ID if the ID exists.
	CreateLicense(ctx context.Context, entry *domain.LicenseEntry) error
	// GetLicense looks up an index entry by exact license ID.
	GetLicense(ctx context.Context, licenseID string) (*domain.LicenseEntry, bool, error)
	// DeleteLicense removes an index entry. Deleting a missing entry is not an error.
	DeleteLicense(ctx context.Context, licenseID string) error
	// ListLicenses enumerates every index entry.
	ListLicenses(ctx context.Context) iter.Seq2[*domain.LicenseEntry, error]

	Ping(ctx context.Context) error
	Close() error
}
