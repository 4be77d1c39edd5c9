// Package search indexes issued license certificates in Bleve for full-text
// lookup by beat title, licensee and producer. The license index stays the
// source of truth: search hits are never used to resolve a document.
package search

import (
	"github.com/beatvault/beatvault-server/internal/domain"
)

// CertificateDocument is the indexed form of an issued license.
type CertificateDocument struct {
	LicenseID  string `json:"license_id"`
	AssetID    string `json:"asset_id"`
	AssetTitle string `json:"asset_title"`
	LicenseeID string `json:"licensee_id"`
	ArtistName string `json:"artist_name,omitempty"`
	Tier       string `json:"tier"`
	IssuedAt   int64  `json:"issued_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapped field names.
func (d *CertificateDocument) ToMap() map[string]any {
	m := map[string]any{
		"license_id":  d.LicenseID,
		"asset_id":    d.AssetID,
		"asset_title": d.AssetTitle,
		"licensee_id": d.LicenseeID,
		"tier":        d.Tier,
		"issued_at":   d.IssuedAt,
	}
	if d.ArtistName != "" {
		m["artist_name"] = d.ArtistName
	}
	return m
}

// FromCertificate builds a document from a freshly issued certificate.
func FromCertificate(cert domain.Certificate) *CertificateDocument {
	return &CertificateDocument{
		LicenseID:  cert.LicenseID,
		AssetID:    cert.AssetID,
		AssetTitle: cert.AssetTitle,
		LicenseeID: cert.LicenseeID,
		ArtistName: cert.ArtistName,
		Tier:       string(cert.Tier),
		IssuedAt:   cert.IssuedAt.UnixMilli(),
	}
}

// FromEntry builds a document from a license index entry.
// Entries do not carry the producer name, so rebuilt documents are not
// searchable by artist.
func FromEntry(entry *domain.LicenseEntry) *CertificateDocument {
	return &CertificateDocument{
		LicenseID:  entry.LicenseID,
		AssetID:    entry.AssetID,
		AssetTitle: entry.AssetTitle,
		LicenseeID: entry.LicenseeID,
		Tier:       string(entry.Tier),
		IssuedAt:   entry.IssuedAt.UnixMilli(),
	}
}
