package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

// CreateLicense inserts a license index entry. The existence check and the
// write share a transaction, so of two racing creates only one commits.
func (s *Store) CreateLicense(ctx context.Context, entry *domain.LicenseEntry) error {
	if entry == nil || entry.LicenseID == "" {
		return domainerrors.InvalidRequest("license entry requires an id")
	}

	key := ownedKey(licensePrefix, entry.LicenseID)
	err := s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return domainerrors.DuplicateLicenseIDf("license %s already issued", entry.LicenseID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, entry)
	})
	return s.mapErr(err, "create license")
}

// GetLicense looks up a license by exact ID.
func (s *Store) GetLicense(ctx context.Context, licenseID string) (*domain.LicenseEntry, bool, error) {
	if licenseID == "" {
		return nil, false, nil
	}

	key := buildKey(licensePrefix, licenseID)
	defer releaseKey(key)

	var entry domain.LicenseEntry
	var found bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, key, &entry)
		return err
	})
	if err != nil {
		return nil, false, s.mapErr(err, "read license")
	}
	if !found {
		return nil, false, nil
	}
	if entry.LicenseID != licenseID {
		return nil, false, domainerrors.CorruptRecord(fmt.Errorf("entry id %q does not match key", entry.LicenseID), string(key))
	}
	return &entry, true, nil
}

// DeleteLicense removes a license index entry.
func (s *Store) DeleteLicense(ctx context.Context, licenseID string) error {
	key := ownedKey(licensePrefix, licenseID)
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	return s.mapErr(err, "delete license")
}

// ListLicenses iterates every license index entry in ID order.
func (s *Store) ListLicenses(ctx context.Context) iter.Seq2[*domain.LicenseEntry, error] {
	return func(yield func(*domain.LicenseEntry, error) bool) {
		err := s.view(ctx, func(txn *badger.Txn) error {
			return scanPrefix(ctx, txn, licensePrefix, func(key, val []byte) bool {
				var entry domain.LicenseEntry
				if err := unmarshalRecord(key, val, &entry); err != nil {
					return yield(nil, err)
				}
				return yield(&entry, nil)
			})
		})
		if err != nil {
			yield(nil, s.mapErr(err, "list licenses"))
		}
	}
}
