// Package popularity folds license issuances into per-asset popularity records.
package popularity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/store"
)

// Event describes one issued license as seen by the ledger.
type Event struct {
	IssuedAt   time.Time
	AssetID    string
	AssetTitle string
	Tier       domain.Tier
}

// Aggregator applies issuance events to the ledger store.
type Aggregator struct {
	store  store.LedgerStore
	table  domain.TierTable
	logger *slog.Logger
}

// NewAggregator creates an aggregator that prices and weighs tiers using table.
func NewAggregator(ledger store.LedgerStore, table domain.TierTable, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{store: ledger, table: table, logger: logger}
}

// Table returns the tier table the aggregator was built with.
func (a *Aggregator) Table() domain.TierTable {
	return a.table
}

// Apply records one license against the event's asset and returns the updated record.
func (a *Aggregator) Apply(ctx context.Context, ev Event) (*domain.PopularityRecord, error) {
	ev.AssetID = strings.TrimSpace(ev.AssetID)
	if ev.AssetID == "" {
		return nil, domainerrors.InvalidRequest("asset id is required")
	}
	if _, ok := a.table.Terms(ev.Tier); !ok {
		return nil, domainerrors.InvalidRequestf("unknown tier %q", ev.Tier)
	}

	rec, err := a.store.UpsertPopularity(ctx, ev.AssetID, func(current *domain.PopularityRecord) (*domain.PopularityRecord, error) {
		return Merge(current, ev, a.table), nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("popularity updated",
		"asset_id", rec.AssetID,
		"tier", ev.Tier,
		"total_licenses", rec.TotalLicenses,
		"popularity_score", rec.PopularityScore,
	)
	return rec, nil
}

// Merge returns the record that results from applying ev to current.
// current may be nil for an asset that has never been licensed; it is not modified.
//
// The title and FirstLicensedAt are fixed by the first event. LastLicensedAt
// always takes the time of the event being applied. Totals, revenue and score
// are recomputed from the tier breakdown.
func Merge(current *domain.PopularityRecord, ev Event, table domain.TierTable) *domain.PopularityRecord {
	var next *domain.PopularityRecord
	if current == nil {
		next = domain.NewPopularityRecord(ev.AssetID, ev.AssetTitle, ev.IssuedAt)
	} else {
		next = current.Clone()
		for _, tier := range domain.AllTiers {
			if _, ok := next.TierBreakdown[tier]; !ok {
				next.TierBreakdown[tier] = 0
			}
		}
	}

	next.TierBreakdown[ev.Tier]++
	next.Recompute(table)
	next.LastLicensedAt = ev.IssuedAt
	return next
}
