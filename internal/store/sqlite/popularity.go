package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/store"
)

const popularityColumns = `asset_id, asset_title, bonus_count, base_count, top_count,
	total_licenses, total_revenue, popularity_score, first_licensed_at, last_licensed_at`

// GetPopularity returns the record for assetID.
func (s *Store) GetPopularity(ctx context.Context, assetID string) (*domain.PopularityRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+popularityColumns+` FROM popularity WHERE asset_id = ?`, assetID)

	rec, err := scanPopularity(row, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.MapError(err, "read popularity")
	}
	return rec, true, nil
}

// UpsertPopularity applies fn under the asset's lock inside one immediate transaction.
func (s *Store) UpsertPopularity(ctx context.Context, assetID string, fn store.PopularityMutator) (*domain.PopularityRecord, error) {
	unlock, err := s.locks.Lock(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.MapError(err, "begin upsert popularity")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := tx.QueryRowContext(ctx,
		`SELECT `+popularityColumns+` FROM popularity WHERE asset_id = ?`, assetID)
	current, err := scanPopularity(row, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		current, err = nil, nil
	}
	if err != nil {
		return nil, store.MapError(err, "read popularity")
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateMutation(assetID, next); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO popularity (`+popularityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			asset_title = excluded.asset_title,
			bonus_count = excluded.bonus_count,
			base_count = excluded.base_count,
			top_count = excluded.top_count,
			total_licenses = excluded.total_licenses,
			total_revenue = excluded.total_revenue,
			popularity_score = excluded.popularity_score,
			first_licensed_at = excluded.first_licensed_at,
			last_licensed_at = excluded.last_licensed_at`,
		next.AssetID,
		next.AssetTitle,
		next.TierBreakdown[domain.TierBonus],
		next.TierBreakdown[domain.TierBase],
		next.TierBreakdown[domain.TierTop],
		next.TotalLicenses,
		next.TotalRevenue,
		next.PopularityScore,
		formatTime(next.FirstLicensedAt),
		formatTime(next.LastLicensedAt),
	)
	if err != nil {
		return nil, store.MapError(err, "write popularity")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, store.MapError(err, "commit popularity")
	}
	return next, nil
}

// ListPopularity iterates every popularity record ordered by asset ID.
func (s *Store) ListPopularity(ctx context.Context) iter.Seq2[*domain.PopularityRecord, error] {
	return func(yield func(*domain.PopularityRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+popularityColumns+` FROM popularity ORDER BY asset_id`)
		if err != nil {
			yield(nil, store.MapError(err, "list popularity"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanPopularity(rows, "")
			if err != nil {
				err = store.MapError(err, "list popularity")
			}
			if !yield(rec, err) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, store.MapError(err, "list popularity"))
		}
	}
}

// scanPopularity reads one row. When assetID is empty the row's own ID is trusted.
// Values that do not fit the model are reported as CORRUPT_RECORD.
func scanPopularity(row rowScanner, assetID string) (*domain.PopularityRecord, error) {
	raw, err := scanRaw(row, 10)
	if err != nil {
		return nil, err
	}

	d := &columnDecoder{row: raw}
	rec := domain.PopularityRecord{
		AssetID:    d.text(0),
		AssetTitle: d.text(1),
		TierBreakdown: map[domain.Tier]int{
			domain.TierBonus: d.integer(2),
			domain.TierBase:  d.integer(3),
			domain.TierTop:   d.integer(4),
		},
		TotalLicenses:   d.integer(5),
		TotalRevenue:    d.real(6),
		PopularityScore: d.integer(7),
		FirstLicensedAt: d.timestamp(8),
		LastLicensedAt:  d.timestamp(9),
	}

	if assetID == "" {
		assetID = rec.AssetID
	}
	key := "popularity:" + assetID
	if d.err != nil {
		return nil, domainerrors.CorruptRecord(d.err, key)
	}
	if err := store.ValidateStored(key, assetID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
