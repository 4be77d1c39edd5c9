package store

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "ledger"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// countTier returns a mutator that records one license at tier.
func countTier(assetID string, tier domain.Tier, at time.Time) PopularityMutator {
	return func(current *domain.PopularityRecord) (*domain.PopularityRecord, error) {
		if current == nil {
			current = domain.NewPopularityRecord(assetID, "title", at)
		}
		current.TierBreakdown[tier]++
		current.Recompute(domain.DefaultTierTable())
		current.LastLicensedAt = at
		return current, nil
	}
}

func TestGetPopularity_Missing(t *testing.T) {
	s := setupTestStore(t)

	rec, found, err := s.GetPopularity(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
}

func TestUpsertPopularity_CreateThenUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rec, err := s.UpsertPopularity(ctx, "A1", countTier("A1", domain.TierBase, t0))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalLicenses)

	rec, err = s.UpsertPopularity(ctx, "A1", countTier("A1", domain.TierTop, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TotalLicenses)
	assert.Equal(t, 5, rec.PopularityScore)

	stored, found, err := s.GetPopularity(ctx, "A1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[domain.Tier]int{domain.TierBonus: 0, domain.TierBase: 1, domain.TierTop: 1}, stored.TierBreakdown)
	assert.Equal(t, 14.98, stored.TotalRevenue)
	assert.True(t, stored.FirstLicensedAt.Equal(t0))
	assert.True(t, stored.LastLicensedAt.Equal(t0.Add(time.Minute)))
}

func TestUpsertPopularity_ConcurrentSameAssetLosesNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Go(func() {
			tier := domain.TierBase
			if i%2 == 0 {
				tier = domain.TierTop
			}
			_, err := s.UpsertPopularity(ctx, "hot", countTier("hot", tier, time.Now()))
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	rec, found, err := s.GetPopularity(ctx, "hot")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n, rec.TotalLicenses)
	assert.Equal(t, n/2, rec.TierBreakdown[domain.TierTop])
	assert.Equal(t, n/2, rec.TierBreakdown[domain.TierBase])
	assert.Zero(t, s.locks.Len())
}

func TestUpsertPopularity_DifferentKeysDoNotBlock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	unlock, err := s.locks.Lock(ctx, "A1")
	require.NoError(t, err)
	defer unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.UpsertPopularity(ctx, "A2", countTier("A2", domain.TierBase, time.Now()))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("upsert on A2 blocked behind lock on A1")
	}
}

func TestUpsertPopularity_WaitsForLockOrContext(t *testing.T) {
	s := setupTestStore(t)

	unlock, err := s.locks.Lock(context.Background(), "A1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.UpsertPopularity(ctx, "A1", countTier("A1", domain.TierBase, time.Now()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpsertPopularity_CancelledBeforeCommitWritesNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	inner := countTier("A1", domain.TierBase, time.Now())
	_, err := s.UpsertPopularity(ctx, "A1", func(cur *domain.PopularityRecord) (*domain.PopularityRecord, error) {
		rec, err := inner(cur)
		cancel()
		return rec, err
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, found, err := s.GetPopularity(context.Background(), "A1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsertPopularity_MutatorErrorPassesThrough(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.UpsertPopularity(context.Background(), "A1", func(*domain.PopularityRecord) (*domain.PopularityRecord, error) {
		return nil, domainerrors.InvalidRequest("unknown tier")
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)

	_, err = s.UpsertPopularity(context.Background(), "A1", func(*domain.PopularityRecord) (*domain.PopularityRecord, error) {
		return domain.NewPopularityRecord("other", "", time.Now()), nil
	})
	assert.ErrorIs(t, err, domainerrors.ErrInternal)
}

func TestCorruptRecord_IsNotCoerced(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("popularity:broken"), []byte("{not json"))
	}))

	_, _, err := s.GetPopularity(ctx, "broken")
	assert.ErrorIs(t, err, domainerrors.ErrCorruptRecord)

	_, err = s.UpsertPopularity(ctx, "broken", countTier("broken", domain.TierBase, time.Now()))
	assert.ErrorIs(t, err, domainerrors.ErrCorruptRecord)

	var sawErr bool
	for _, err := range s.ListPopularity(ctx) {
		if err != nil {
			sawErr = true
			assert.ErrorIs(t, err, domainerrors.ErrCorruptRecord)
		}
	}
	assert.True(t, sawErr)
}

func TestCorruptRecord_InvariantViolation(t *testing.T) {
	s := setupTestStore(t)

	// parses fine but totals disagree with the breakdown
	raw := `{"asset_id":"A1","tier_breakdown":{"bonus":0,"base":2,"top":0},"total_licenses":1}`
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("popularity:A1"), []byte(raw))
	}))

	_, _, err := s.GetPopularity(context.Background(), "A1")
	assert.ErrorIs(t, err, domainerrors.ErrCorruptRecord)
}

func TestListPopularity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"C", "A", "B"} {
		_, err := s.UpsertPopularity(ctx, id, countTier(id, domain.TierBase, time.Now()))
		require.NoError(t, err)
	}

	var ids []string
	for rec, err := range s.ListPopularity(ctx) {
		require.NoError(t, err)
		ids = append(ids, rec.AssetID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)

	// restartable
	var again []string
	for rec, err := range s.ListPopularity(ctx) {
		require.NoError(t, err)
		again = append(again, rec.AssetID)
		break
	}
	assert.Equal(t, []string{"A"}, again)
}

func TestClosedStore_Unavailable(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "ledger"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()

	assert.ErrorIs(t, s.Ping(ctx), domainerrors.ErrStoreUnavailable)

	_, _, err = s.GetPopularity(ctx, "A1")
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)

	_, err = s.UpsertPopularity(ctx, "A1", countTier("A1", domain.TierBase, time.Now()))
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)

	err = s.CreateLicense(ctx, &domain.LicenseEntry{LicenseID: "X"})
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
}

func TestLicenses_CreateGetDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entry := &domain.LicenseEntry{
		LicenseID:    "BV-AB12-1700000000000",
		AssetID:      "A1",
		AssetTitle:   "Neon Drive",
		LicenseeID:   "u1",
		Tier:         domain.TierBase,
		DocumentPath: "/data/certificates/Neon_Drive_BV-AB12-1700000000000.md",
		Fingerprint:  "abc",
		IssuedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateLicense(ctx, entry))

	got, found, err := s.GetLicense(ctx, entry.LicenseID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.DocumentPath, got.DocumentPath)
	assert.True(t, entry.IssuedAt.Equal(got.IssuedAt))

	err = s.CreateLicense(ctx, entry)
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateLicenseID)

	for _, partial := range []string{"AB12", "BV-AB12", "1700000000000", ""} {
		_, found, err := s.GetLicense(ctx, partial)
		require.NoError(t, err)
		assert.False(t, found, "partial id %q must not resolve", partial)
	}

	require.NoError(t, s.DeleteLicense(ctx, entry.LicenseID))
	_, found, err = s.GetLicense(ctx, entry.LicenseID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.DeleteLicense(ctx, "never-existed"))
}

func TestLicenses_ConcurrentCreateSameID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	results := make(chan error, n)
	for range n {
		wg.Go(func() {
			results <- s.CreateLicense(ctx, &domain.LicenseEntry{LicenseID: "SAME", AssetID: "A1"})
		})
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case domainerrors.Is(err, domainerrors.ErrDuplicateLicenseID):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestListLicenses(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.CreateLicense(ctx, &domain.LicenseEntry{
			LicenseID: fmt.Sprintf("L-%d", i),
			AssetID:   "A1",
		}))
	}

	var ids []string
	for entry, err := range s.ListLicenses(ctx) {
		require.NoError(t, err)
		ids = append(ids, entry.LicenseID)
	}
	assert.True(t, slices.Equal([]string{"L-0", "L-1", "L-2"}, ids))
}

func TestNewInMemory(t *testing.T) {
	s, err := NewInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
}
