package store

import (
	"bytes"
	"context"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

// GetPopularity returns the record for assetID.
func (s *Store) GetPopularity(ctx context.Context, assetID string) (*domain.PopularityRecord, bool, error) {
	key := buildKey(popularityPrefix, assetID)
	defer releaseKey(key)

	var rec *domain.PopularityRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = readPopularity(txn, key, assetID)
		return err
	})
	if err != nil {
		return nil, false, s.mapErr(err, "read popularity")
	}
	return rec, rec != nil, nil
}

// UpsertPopularity applies fn under the asset's lock inside one transaction.
func (s *Store) UpsertPopularity(ctx context.Context, assetID string, fn PopularityMutator) (*domain.PopularityRecord, error) {
	unlock, err := s.locks.Lock(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key := ownedKey(popularityPrefix, assetID)

	var result *domain.PopularityRecord
	var mutateErr error
	err = s.update(ctx, func(txn *badger.Txn) error {
		current, err := readPopularity(txn, key, assetID)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			mutateErr = err
			return err
		}
		if err := ValidateMutation(assetID, next); err != nil {
			mutateErr = err
			return err
		}

		result = next
		return setJSON(txn, key, next)
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		return nil, s.mapErr(err, "upsert popularity")
	}
	return result, nil
}

// ListPopularity iterates every popularity record in key order.
func (s *Store) ListPopularity(ctx context.Context) iter.Seq2[*domain.PopularityRecord, error] {
	return func(yield func(*domain.PopularityRecord, error) bool) {
		err := s.view(ctx, func(txn *badger.Txn) error {
			return scanPrefix(ctx, txn, popularityPrefix, func(key, val []byte) bool {
				assetID := string(bytes.TrimPrefix(key, []byte(popularityPrefix)))
				rec, err := decodePopularity(key, val, assetID)
				return yield(rec, err)
			})
		})
		if err != nil {
			yield(nil, s.mapErr(err, "list popularity"))
		}
	}
}

// readPopularity loads and validates the record at key. A missing key yields (nil, nil).
func readPopularity(txn *badger.Txn, key []byte, assetID string) (*domain.PopularityRecord, error) {
	var rec domain.PopularityRecord
	found, err := getJSON(txn, key, &rec)
	if err != nil || !found {
		return nil, err
	}
	if err := ValidateStored(string(key), assetID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodePopularity(key, val []byte, assetID string) (*domain.PopularityRecord, error) {
	var rec domain.PopularityRecord
	if err := unmarshalRecord(key, val, &rec); err != nil {
		return nil, err
	}
	if err := ValidateStored(string(key), assetID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ValidateStored rejects records that decode but break the ledger invariants.
// key identifies the record in CORRUPT_RECORD details.
func ValidateStored(key, assetID string, rec *domain.PopularityRecord) error {
	if err := rec.Validate(); err != nil {
		return domainerrors.CorruptRecord(err, key)
	}
	if rec.AssetID != assetID {
		return domainerrors.CorruptRecord(fmt.Errorf("record asset id %q does not match key", rec.AssetID), key)
	}
	return nil
}

// ValidateMutation guards against a mutator producing a record the store would later refuse to read.
func ValidateMutation(assetID string, next *domain.PopularityRecord) error {
	if next == nil {
		return domainerrors.Internalf("popularity mutator returned nil for %s", assetID)
	}
	if next.AssetID != assetID {
		return domainerrors.Internalf("popularity mutator changed asset id %s to %s", assetID, next.AssetID)
	}
	if err := next.Validate(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "popularity mutator produced invalid record")
	}
	return nil
}
