package domain

import (
	"fmt"

	"github.com/beatvault/beatvault-server/internal/money"
)

// Tier is a license grade. Each tier carries a fixed price and popularity weight.
type Tier string

// Tier constants.
const (
	// TierBonus is a historical tier. It is still aggregated but can no longer be issued.
	TierBonus Tier = "bonus"
	TierBase  Tier = "base"
	TierTop   Tier = "top"
)

// AllTiers lists every tier the ledger aggregates, in display order.
var AllTiers = []Tier{TierBonus, TierBase, TierTop}

// Valid returns true if the tier is known to the ledger.
func (t Tier) Valid() bool {
	switch t {
	case TierBonus, TierBase, TierTop:
		return true
	default:
		return false
	}
}

// Issuable returns true if new licenses may be issued at this tier.
func (t Tier) Issuable() bool {
	return t == TierBase || t == TierTop
}

// ParseTier converts a string to a Tier, rejecting unknown values.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// TierTerms holds the pricing and ranking weight for a tier.
type TierTerms struct {
	Price  string // decimal string, e.g. "4.99"
	Weight int
}

// TierTable is the immutable price and weight configuration handed to the aggregator.
// Build it once with NewTierTable or DefaultTierTable; it is never mutated afterwards.
type TierTable struct {
	terms  map[Tier]TierTerms
	prices map[Tier]money.Decimal
}

// NewTierTable builds a table from the given terms. Every known tier must be
// present with a non-negative decimal price and weight.
func NewTierTable(terms map[Tier]TierTerms) (TierTable, error) {
	copied := make(map[Tier]TierTerms, len(terms))
	prices := make(map[Tier]money.Decimal, len(terms))
	for _, tier := range AllTiers {
		t, ok := terms[tier]
		if !ok {
			return TierTable{}, fmt.Errorf("tier table missing %q", tier)
		}
		if t.Weight < 0 {
			return TierTable{}, fmt.Errorf("tier %q has negative weight", tier)
		}
		price, err := money.Parse(t.Price)
		if err != nil {
			return TierTable{}, fmt.Errorf("tier %q price: %w", tier, err)
		}
		if price.Cmp(money.Zero()) < 0 {
			return TierTable{}, fmt.Errorf("tier %q has negative price", tier)
		}
		copied[tier] = t
		prices[tier] = price
	}
	return TierTable{terms: copied, prices: prices}, nil
}

// DefaultTierTable returns the standard BeatVault prices and weights.
func DefaultTierTable() TierTable {
	table, err := NewTierTable(map[Tier]TierTerms{
		TierBonus: {Price: "2.99", Weight: 1},
		TierBase:  {Price: "4.99", Weight: 2},
		TierTop:   {Price: "9.99", Weight: 3},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Terms returns the terms for a tier.
func (t TierTable) Terms(tier Tier) (TierTerms, bool) {
	terms, ok := t.terms[tier]
	return terms, ok
}

// Price returns the decimal price string for a tier, or "0" if unknown.
func (t TierTable) Price(tier Tier) string {
	if terms, ok := t.terms[tier]; ok {
		return terms.Price
	}
	return "0"
}

// PriceDecimal returns the parsed price for a tier, or zero if unknown.
func (t TierTable) PriceDecimal(tier Tier) money.Decimal {
	if price, ok := t.prices[tier]; ok {
		return price
	}
	return money.Zero()
}

// Weight returns the popularity weight for a tier, or 0 if unknown.
func (t TierTable) Weight(tier Tier) int {
	return t.terms[tier].Weight
}
