package domain

import "time"

// Defaults applied to optional descriptive fields of an issuance request.
const (
	DefaultAssetTitle    = "Untitled Beat"
	DefaultLicenseeEmail = "not-provided"
	DefaultArtistName    = "BeatVault Artist"
)

// IssueRequest is the validated input for issuing a license.
type IssueRequest struct {
	AssetID       string `json:"asset_id" validate:"notblank,max=128,nocontrol"`
	AssetTitle    string `json:"asset_title" validate:"max=256,nocontrol"`
	LicenseeID    string `json:"licensee_id" validate:"notblank,max=128,nocontrol"`
	LicenseeEmail string `json:"licensee_email,omitempty" validate:"omitempty,email"`
	ArtistName    string `json:"artist_name,omitempty" validate:"max=256,nocontrol"`
	Tier          Tier   `json:"tier" validate:"required,oneof=base top"`
	LicenseID     string `json:"license_id,omitempty" validate:"omitempty,max=128,licenseid"`
}

// Certificate is the immutable record of an issued license.
type Certificate struct {
	IssuedAt      time.Time `json:"issued_at"`
	LicenseID     string    `json:"license_id"`
	AssetID       string    `json:"asset_id"`
	AssetTitle    string    `json:"asset_title"`
	LicenseeID    string    `json:"licensee_id"`
	LicenseeEmail string    `json:"licensee_email"`
	ArtistName    string    `json:"artist_name"`
	Tier          Tier      `json:"tier"`
	Price         string    `json:"price"`
	RightsText    []string  `json:"rights_text"`
}

// LicenseEntry maps a license ID to its stored certificate document.
// It is written once at issuance and never mutated.
type LicenseEntry struct {
	IssuedAt     time.Time `json:"issued_at"`
	LicenseID    string    `json:"license_id"`
	AssetID      string    `json:"asset_id"`
	AssetTitle   string    `json:"asset_title"`
	LicenseeID   string    `json:"licensee_id"`
	Tier         Tier      `json:"tier"`
	DocumentPath string    `json:"document_path"`
	Fingerprint  string    `json:"fingerprint"`
}

// IssueResult is returned to the caller after a license is issued.
// Degraded is set when the certificate was written but the ledger update failed.
type IssueResult struct {
	Record           *PopularityRecord `json:"record,omitempty"`
	LedgerError      error             `json:"-"`
	LicenseID        string            `json:"license_id"`
	DocumentLocation string            `json:"document_location"`
	Degraded         bool              `json:"degraded"`
}
