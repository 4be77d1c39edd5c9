package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/popularity"
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/sse"
	"github.com/beatvault/beatvault-server/internal/store"
	"github.com/beatvault/beatvault-server/internal/store/sqlite"
	"github.com/beatvault/beatvault-server/internal/validation"
)

var t0 = time.Date(2025, 2, 14, 18, 30, 0, 0, time.UTC)

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	licenses *LicenseService
	ledger   *LedgerService
	store    store.LedgerStore
	docs     *certificate.Storage
	index    *search.SearchIndex
	events   *recordingEmitter
}

func newBadgerStore(t *testing.T) store.LedgerStore {
	t.Helper()
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSQLiteStore(t *testing.T) store.LedgerStore {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.sqlite"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEnv(t *testing.T, ledger store.LedgerStore) *testEnv {
	t.Helper()

	dir := t.TempDir()
	docs, err := certificate.NewStorage(filepath.Join(dir, "certificates"))
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(dir, "search")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	events := &recordingEmitter{}
	agg := popularity.NewAggregator(ledger, domain.DefaultTierTable(), nil)

	return &testEnv{
		licenses: NewLicenseService(ledger, agg, docs, index, events, validation.New(), LicenseServiceConfig{IDPrefix: "BV", IssueTimeout: 5 * time.Second}, nil),
		ledger:   NewLedgerService(ledger, docs, index, nil),
		store:    ledger,
		docs:     docs,
		index:    index,
		events:   events,
	}
}

func neonDrive(tier domain.Tier) domain.IssueRequest {
	return domain.IssueRequest{
		AssetID:       "A1",
		AssetTitle:    "Neon Drive",
		LicenseeID:    "u1",
		LicenseeEmail: "buyer@example.com",
		ArtistName:    "Midnight Tapes",
		Tier:          tier,
	}
}

func TestIssue_NeonDriveScenario(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()
	env.licenses.now = func() time.Time { return t0 }

	res, err := env.licenses.Issue(ctx, neonDrive(domain.TierBase))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Regexp(t, `^BV-[A-Z0-9]{4}-1739557800000$`, res.LicenseID)
	assert.Equal(t, filepath.Join(env.docs.Dir(), "Neon_Drive_"+res.LicenseID+".md"), res.DocumentLocation)
	require.NotNil(t, res.Record)
	assert.Equal(t, map[domain.Tier]int{domain.TierBonus: 0, domain.TierBase: 1, domain.TierTop: 0}, res.Record.TierBreakdown)
	assert.Equal(t, 1, res.Record.TotalLicenses)
	assert.Equal(t, 4.99, res.Record.TotalRevenue)
	assert.Equal(t, 2, res.Record.PopularityScore)

	body, err := os.ReadFile(res.DocumentLocation)
	require.NoError(t, err)
	assert.Contains(t, string(body), res.LicenseID)
	assert.Contains(t, string(body), "Neon Drive")

	res, err = env.licenses.Issue(ctx, neonDrive(domain.TierTop))
	require.NoError(t, err)
	assert.Equal(t, map[domain.Tier]int{domain.TierBonus: 0, domain.TierBase: 1, domain.TierTop: 1}, res.Record.TierBreakdown)
	assert.Equal(t, 2, res.Record.TotalLicenses)
	assert.Equal(t, 14.98, res.Record.TotalRevenue)
	assert.Equal(t, 5, res.Record.PopularityScore)

	stats, ok, err := env.ledger.GetStats(ctx, "A1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Record, stats)

	assert.Equal(t, []sse.EventType{
		sse.EventLicenseIssued, sse.EventLedgerUpdated,
		sse.EventLicenseIssued, sse.EventLedgerUpdated,
	}, env.events.types())

	count, err := env.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIssue_IndexEntryMatchesDocument(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()

	res, err := env.licenses.Issue(ctx, neonDrive(domain.TierTop))
	require.NoError(t, err)

	entry, ok, err := env.ledger.GetLicense(ctx, res.LicenseID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.DocumentLocation, entry.DocumentPath)
	assert.Equal(t, "u1", entry.LicenseeID)

	verified, err := env.ledger.VerifyLicenseDocument(ctx, res.LicenseID)
	require.NoError(t, err)
	assert.True(t, verified)

	require.NoError(t, os.WriteFile(res.DocumentLocation, []byte("tampered"), 0o644))
	verified, err = env.ledger.VerifyLicenseDocument(ctx, res.LicenseID)
	require.NoError(t, err)
	assert.False(t, verified)

	_, err = env.ledger.VerifyLicenseDocument(ctx, "BV-NOPE-1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestIssue_ValidationFailsBeforeAnySideEffect(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.IssueRequest)
	}{
		{"blank asset", func(r *domain.IssueRequest) { r.AssetID = "  " }},
		{"blank licensee", func(r *domain.IssueRequest) { r.LicenseeID = "" }},
		{"bonus tier", func(r *domain.IssueRequest) { r.Tier = domain.TierBonus }},
		{"unknown tier", func(r *domain.IssueRequest) { r.Tier = "gold" }},
		{"nul byte in title", func(r *domain.IssueRequest) { r.AssetTitle = "Neon\x00Drive" }},
		{"control char in artist", func(r *domain.IssueRequest) { r.ArtistName = "Midnight\x00Tapes" }},
		{"reserved license id", func(r *domain.IssueRequest) { r.LicenseID = "search" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := neonDrive(domain.TierBase)
			tt.mutate(&req)
			_, err := env.licenses.Issue(ctx, req)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
			assert.False(t, domainerrors.CodeOf(err).Retryable())
		})
	}

	has, err := env.ledger.HasStats(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, has)

	files, err := os.ReadDir(env.docs.Dir())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, env.events.types())
}

func TestIssue_TierIsCaseInsensitiveAndFieldsTrimmed(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))

	req := neonDrive("  TOP ")
	req.AssetID = " A1 "
	req.LicenseID = "  CUSTOM-1 "
	res, err := env.licenses.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-1", res.LicenseID)
	assert.Equal(t, "A1", res.Record.AssetID)
	assert.Equal(t, 1, res.Record.TierBreakdown[domain.TierTop])
}

func TestIssue_DuplicateCallerIDRejected(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()

	req := neonDrive(domain.TierBase)
	req.LicenseID = "CUSTOM-1"
	first, err := env.licenses.Issue(ctx, req)
	require.NoError(t, err)

	req.AssetTitle = "Other Title"
	_, err = env.licenses.Issue(ctx, req)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateLicenseID)

	// Nothing overwritten, no second ledger update.
	loc, ok, err := env.ledger.ResolveLicenseDocument(ctx, "CUSTOM-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.DocumentLocation, loc)

	rec, _, err := env.ledger.GetStats(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalLicenses)

	_, err = os.Stat(env.docs.PathFor("Other Title", "CUSTOM-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestIssue_WriteFailureRollsBackReservation(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()

	require.NoError(t, os.RemoveAll(env.docs.Dir()))

	req := neonDrive(domain.TierBase)
	req.LicenseID = "CUSTOM-1"
	_, err := env.licenses.Issue(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)

	_, ok, err := env.ledger.GetLicense(ctx, "CUSTOM-1")
	require.NoError(t, err)
	assert.False(t, ok, "reservation must be rolled back")

	has, err := env.ledger.HasStats(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, has, "no ledger update after a failed write")
	assert.Empty(t, env.events.types())
}

func TestIssue_ExistingDocumentIsNeverOverwritten(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx := context.Background()

	path := env.docs.PathFor("Neon Drive", "CUSTOM-1")
	require.NoError(t, os.WriteFile(path, []byte("orphan"), 0o644))

	req := neonDrive(domain.TierBase)
	req.LicenseID = "CUSTOM-1"
	_, err := env.licenses.Issue(ctx, req)
	assert.ErrorIs(t, err, domainerrors.ErrInternal)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "orphan", string(data))

	_, ok, err := env.ledger.GetLicense(ctx, "CUSTOM-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingLedger fails every popularity upsert.
type failingLedger struct {
	store.LedgerStore
}

func (f failingLedger) UpsertPopularity(context.Context, string, store.PopularityMutator) (*domain.PopularityRecord, error) {
	return nil, domainerrors.StoreUnavailable(os.ErrDeadlineExceeded, "ledger offline")
}

func TestIssue_LedgerFailureIsDegradedSuccess(t *testing.T) {
	env := newTestEnv(t, failingLedger{LedgerStore: newBadgerStore(t)})
	ctx := context.Background()

	res, err := env.licenses.Issue(ctx, neonDrive(domain.TierBase))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Nil(t, res.Record)
	assert.ErrorIs(t, res.LedgerError, domainerrors.ErrStoreUnavailable)

	_, err = os.Stat(res.DocumentLocation)
	assert.NoError(t, err, "certificate is kept")

	loc, ok, err := env.ledger.ResolveLicenseDocument(ctx, res.LicenseID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.DocumentLocation, loc)

	assert.Equal(t, []sse.EventType{sse.EventLicenseIssued}, env.events.types())
}

// collidingLedger reports a duplicate for the first n license creates.
type collidingLedger struct {
	store.LedgerStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (c *collidingLedger) CreateLicense(ctx context.Context, entry *domain.LicenseEntry) error {
	c.mu.Lock()
	c.attempts++
	fail := c.attempts <= c.failures
	c.mu.Unlock()
	if fail {
		return domainerrors.DuplicateLicenseIDf("license %s already issued", entry.LicenseID)
	}
	return c.LedgerStore.CreateLicense(ctx, entry)
}

func TestIssue_GeneratedIDCollisionRetries(t *testing.T) {
	ledger := &collidingLedger{LedgerStore: newBadgerStore(t), failures: 2}
	env := newTestEnv(t, ledger)

	res, err := env.licenses.Issue(context.Background(), neonDrive(domain.TierBase))
	require.NoError(t, err)
	assert.NotEmpty(t, res.LicenseID)
	assert.Equal(t, 3, ledger.attempts)
}

func TestIssue_GeneratedIDCollisionGivesUp(t *testing.T) {
	ledger := &collidingLedger{LedgerStore: newBadgerStore(t), failures: 10}
	env := newTestEnv(t, ledger)

	_, err := env.licenses.Issue(context.Background(), neonDrive(domain.TierBase))
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateLicenseID)
	assert.Equal(t, maxGeneratedIDAttempts, ledger.attempts)
}

func TestIssue_CallerIDCollisionNotRetried(t *testing.T) {
	ledger := &collidingLedger{LedgerStore: newBadgerStore(t), failures: 1}
	env := newTestEnv(t, ledger)

	req := neonDrive(domain.TierBase)
	req.LicenseID = "CUSTOM-1"
	_, err := env.licenses.Issue(context.Background(), req)
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateLicenseID)
	assert.Equal(t, 1, ledger.attempts)
}

func TestIssue_CancelledContext(t *testing.T) {
	env := newTestEnv(t, newBadgerStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.licenses.Issue(ctx, neonDrive(domain.TierBase))
	require.Error(t, err)

	has, err := env.ledger.HasStats(context.Background(), "A1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestIssue_ConcurrentIssuancesLoseNoUpdate(t *testing.T) {
	backends := map[string]func(*testing.T) store.LedgerStore{
		"badger": newBadgerStore,
		"sqlite": newSQLiteStore,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, open(t))
			ctx := context.Background()

			const n = 30
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := range n {
				tier := domain.TierBase
				if i%3 == 0 {
					tier = domain.TierTop
				}
				wg.Go(func() {
					if _, err := env.licenses.Issue(ctx, neonDrive(tier)); err != nil {
						errs <- err
					}
				})
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("issue failed: %v", err)
			}

			rec, ok, err := env.ledger.GetStats(ctx, "A1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, n, rec.TotalLicenses)
			assert.Equal(t, 10, rec.TierBreakdown[domain.TierTop])
			assert.Equal(t, 20, rec.TierBreakdown[domain.TierBase])
			assert.Equal(t, 20*2+10*3, rec.PopularityScore)
			assert.Equal(t, 199.70, rec.TotalRevenue)

			files, err := os.ReadDir(env.docs.Dir())
			require.NoError(t, err)
			assert.Len(t, files, n)
		})
	}
}
