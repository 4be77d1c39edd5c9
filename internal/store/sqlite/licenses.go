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

const licenseColumns = `license_id, asset_id, asset_title, licensee_id, tier, document_path, fingerprint, issued_at`

// CreateLicense inserts a license index entry.
func (s *Store) CreateLicense(ctx context.Context, entry *domain.LicenseEntry) error {
	if entry == nil || entry.LicenseID == "" {
		return domainerrors.InvalidRequest("license entry requires an id")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (`+licenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(license_id) DO NOTHING`,
		entry.LicenseID,
		entry.AssetID,
		entry.AssetTitle,
		entry.LicenseeID,
		string(entry.Tier),
		entry.DocumentPath,
		entry.Fingerprint,
		formatTime(entry.IssuedAt),
	)
	if err != nil {
		return store.MapError(err, "create license")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.MapError(err, "create license")
	}
	if n == 0 {
		return domainerrors.DuplicateLicenseIDf("license %s already issued", entry.LicenseID)
	}
	return nil
}

// GetLicense looks up a license by exact ID.
func (s *Store) GetLicense(ctx context.Context, licenseID string) (*domain.LicenseEntry, bool, error) {
	if licenseID == "" {
		return nil, false, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_id = ?`, licenseID)
	entry, err := scanLicense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.MapError(err, "read license")
	}
	return entry, true, nil
}

// DeleteLicense removes a license index entry.
func (s *Store) DeleteLicense(ctx context.Context, licenseID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE license_id = ?`, licenseID)
	return store.MapError(err, "delete license")
}

// ListLicenses iterates every license index entry ordered by ID.
func (s *Store) ListLicenses(ctx context.Context) iter.Seq2[*domain.LicenseEntry, error] {
	return func(yield func(*domain.LicenseEntry, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+licenseColumns+` FROM licenses ORDER BY license_id`)
		if err != nil {
			yield(nil, store.MapError(err, "list licenses"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanLicense(rows)
			if err != nil {
				err = store.MapError(err, "list licenses")
			}
			if !yield(entry, err) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, store.MapError(err, "list licenses"))
		}
	}
}

func scanLicense(row rowScanner) (*domain.LicenseEntry, error) {
	raw, err := scanRaw(row, 8)
	if err != nil {
		return nil, err
	}

	d := &columnDecoder{row: raw}
	entry := domain.LicenseEntry{
		LicenseID:    d.text(0),
		AssetID:      d.text(1),
		AssetTitle:   d.text(2),
		LicenseeID:   d.text(3),
		DocumentPath: d.text(5),
		Fingerprint:  d.text(6),
		IssuedAt:     d.timestamp(7),
	}
	tier := d.text(4)

	key := "license:" + entry.LicenseID
	if d.err != nil {
		return nil, domainerrors.CorruptRecord(d.err, key)
	}
	if entry.Tier, err = domain.ParseTier(tier); err != nil {
		return nil, domainerrors.CorruptRecord(err, key)
	}
	return &entry, nil
}
