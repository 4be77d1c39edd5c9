// Package certificate builds, renders and stores license certificates.
package certificate

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/beatvault/beatvault-server/internal/domain"
)

// Rights granted by every issuable tier.
var baseRights = []string{
	"Non-exclusive, worldwide right to use the beat in one commercial release.",
	"Distribution on streaming platforms and digital stores.",
	"Use in monetized video content and live performances.",
	"Delivery as a high-quality MP3 file.",
	"Credit must read \"Prod. by {artist}\" wherever credits are listed.",
	"Ownership of the underlying composition remains with the artist.",
}

// Additional rights for the top tier.
var topRights = []string{
	"Delivery of the full track-out stems for mixing and re-arrangement.",
	"Delivery as an uncompressed high-quality WAV file.",
	"Unlimited streams and sales for the licensed release.",
}

// Build assembles the certificate for a validated request. Optional fields fall
// back to their defaults and free text is NFC normalized, so the same request,
// license ID and time always produce the same certificate.
func Build(req domain.IssueRequest, licenseID string, issuedAt time.Time, table domain.TierTable) domain.Certificate {
	cert := domain.Certificate{
		LicenseID:     licenseID,
		AssetID:       strings.TrimSpace(req.AssetID),
		AssetTitle:    clean(req.AssetTitle, domain.DefaultAssetTitle),
		LicenseeID:    strings.TrimSpace(req.LicenseeID),
		LicenseeEmail: clean(req.LicenseeEmail, domain.DefaultLicenseeEmail),
		ArtistName:    clean(req.ArtistName, domain.DefaultArtistName),
		Tier:          req.Tier,
		Price:         table.Price(req.Tier),
		IssuedAt:      issuedAt.UTC(),
	}
	cert.RightsText = RightsFor(cert.Tier, cert.ArtistName)
	return cert
}

// RightsFor returns the rights clauses granted at tier.
func RightsFor(tier domain.Tier, artist string) []string {
	clauses := make([]string, 0, len(baseRights)+len(topRights))
	for _, c := range baseRights {
		clauses = append(clauses, strings.ReplaceAll(c, "{artist}", artist))
	}
	if tier == domain.TierTop {
		clauses = append(clauses, topRights...)
	}
	return clauses
}

func clean(s, fallback string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return fallback
	}
	return s
}
