package domain

import (
	"time"

	"github.com/beatvault/beatvault-server/internal/money"
)

// PopularityRecord is the per-asset aggregate of every license issued against it.
//
// TotalLicenses, TotalRevenue and PopularityScore are always derived from
// TierBreakdown via Recompute; they are never incremented independently.
type PopularityRecord struct {
	FirstLicensedAt time.Time    `json:"first_licensed_at"`
	LastLicensedAt  time.Time    `json:"last_licensed_at"`
	TierBreakdown   map[Tier]int `json:"tier_breakdown"`
	AssetID         string       `json:"asset_id"`
	AssetTitle      string       `json:"asset_title"`
	TotalLicenses   int          `json:"total_licenses"`
	TotalRevenue    float64      `json:"total_revenue"`
	PopularityScore int          `json:"popularity_score"`
}

// NewPopularityRecord returns an empty record with a zero count for every tier.
func NewPopularityRecord(assetID, assetTitle string, firstLicensedAt time.Time) *PopularityRecord {
	breakdown := make(map[Tier]int, len(AllTiers))
	for _, t := range AllTiers {
		breakdown[t] = 0
	}
	return &PopularityRecord{
		AssetID:         assetID,
		AssetTitle:      assetTitle,
		TierBreakdown:   breakdown,
		FirstLicensedAt: firstLicensedAt,
		LastLicensedAt:  firstLicensedAt,
	}
}

// Clone returns a deep copy of the record.
func (r *PopularityRecord) Clone() *PopularityRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.TierBreakdown = make(map[Tier]int, len(r.TierBreakdown))
	for k, v := range r.TierBreakdown {
		c.TierBreakdown[k] = v
	}
	return &c
}

// Recompute derives the totals, revenue and score from the tier breakdown.
func (r *PopularityRecord) Recompute(table TierTable) {
	total := 0
	score := 0
	revenue := money.Zero()
	for _, tier := range AllTiers {
		count := r.TierBreakdown[tier]
		total += count
		score += count * table.Weight(tier)
		revenue = revenue.Add(table.PriceDecimal(tier).MulInt(int64(count)))
	}
	r.TotalLicenses = total
	r.PopularityScore = score
	r.TotalRevenue = revenue.Round(2).Float64()
}

// Validate checks the structural invariants of a stored record.
// Score and revenue depend on the tier table and are not checked here.
func (r *PopularityRecord) Validate() error {
	if r.AssetID == "" {
		return errInvalidRecord("missing asset id")
	}
	if r.TierBreakdown == nil {
		return errInvalidRecord("missing tier breakdown")
	}
	total := 0
	for tier, count := range r.TierBreakdown {
		if !tier.Valid() {
			return errInvalidRecord("unknown tier " + string(tier))
		}
		if count < 0 {
			return errInvalidRecord("negative count for tier " + string(tier))
		}
		total += count
	}
	if total != r.TotalLicenses {
		return errInvalidRecord("total licenses do not match tier breakdown")
	}
	return nil
}

type invalidRecordError string

func (e invalidRecordError) Error() string { return "invalid popularity record: " + string(e) }

func errInvalidRecord(msg string) error { return invalidRecordError(msg) }
