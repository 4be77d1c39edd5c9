// Package store provides the ledger persistence contract and its Badger implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

// maxConflictRetries bounds how often a transaction is replayed after badger
// reports a write conflict.
const maxConflictRetries = 5

// Store is the Badger-backed LedgerStore.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	locks  *KeyedMutex
}

var _ LedgerStore = (*Store)(nil)

// New opens (or creates) a Badger ledger at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // A returned upsert must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// OpenReadOnly opens an existing Badger ledger without taking the write lock.
// Writes through the returned store fail.
func OpenReadOnly(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithReadOnly(true)
	opts.Logger = nil
	return open(opts, logger)
}

// NewInMemory opens a Badger ledger that lives only in memory. Used by tests and tools.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("Badger ledger opened", "path", opts.Dir, "in_memory", opts.InMemory)

	return &Store{
		db:     db,
		logger: logger,
		locks:  NewKeyedMutex(),
	}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("Closing Badger ledger")
	return s.db.Close()
}

// Ping reports whether the database is open and readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return domainerrors.StoreUnavailable(badger.ErrDBClosed, "ledger closed")
	}
	return s.mapErr(s.view(ctx, func(*badger.Txn) error { return nil }), "ping ledger")
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, replaying it on write conflicts.
// ctx is checked again right before commit so a cancelled update writes nothing.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		if s.db.IsClosed() {
			return badger.ErrDBClosed
		}

		txn := s.db.NewTransaction(true)
		if err = fn(txn); err != nil {
			txn.Discard()
			return err
		}
		if err = ctx.Err(); err != nil {
			txn.Discard()
			return err
		}
		err = txn.Commit()
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("ledger write conflict, retrying")
	}
	return err
}

// getJSON reads key inside txn and decodes it into dest. found is false when the key is absent.
func getJSON(txn *badger.Txn, key []byte, dest any) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return unmarshalRecord(key, val, dest)
	})
	return err == nil, err
}

// setJSON encodes value and stages it under key.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

func (s *Store) mapErr(err error, op string) error {
	return MapError(err, op)
}

// MapError converts backend failures into STORE_UNAVAILABLE. Domain and
// context errors pass through untouched.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domainerrors.StoreUnavailable(err, op)
}

func unmarshalRecord(key, val []byte, dest any) error {
	if err := json.Unmarshal(val, dest); err != nil {
		return domainerrors.CorruptRecord(err, string(key))
	}
	return nil
}

// scanPrefix walks every key under prefix. fn receives copies of the key and
// value; returning false stops the scan without error.
func scanPrefix(ctx context.Context, txn *badger.Txn, prefix string, fn func(key, val []byte) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !fn(item.KeyCopy(nil), val) {
			return nil
		}
	}
	return nil
}
