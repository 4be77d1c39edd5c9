// Package sse streams license issuance and ledger updates to connected
// clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/beatvault/beatvault-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventLicenseIssued is sent once a certificate has been written and indexed.
	EventLicenseIssued EventType = "license.issued"
	// EventLedgerUpdated carries the popularity record after an issuance was applied.
	EventLedgerUpdated EventType = "ledger.updated"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is written to a client right after it registers.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// AssetID scopes the event to clients watching one asset. Empty means all.
	AssetID string `json:"-"`
}

// LicenseIssuedEventData is the payload for license.issued.
type LicenseIssuedEventData struct {
	IssuedAt         time.Time   `json:"issued_at"`
	LicenseID        string      `json:"license_id"`
	AssetID          string      `json:"asset_id"`
	AssetTitle       string      `json:"asset_title"`
	LicenseeID       string      `json:"licensee_id"`
	Tier             domain.Tier `json:"tier"`
	DocumentLocation string      `json:"document_location"`
	Degraded         bool        `json:"degraded"`
}

// LedgerUpdatedEventData is the payload for ledger.updated.
type LedgerUpdatedEventData struct {
	Record *domain.PopularityRecord `json:"record"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewLicenseIssuedEvent creates a license.issued event for cert.
func NewLicenseIssuedEvent(cert domain.Certificate, documentLocation string, degraded bool) Event {
	return Event{
		Type: EventLicenseIssued,
		Data: LicenseIssuedEventData{
			IssuedAt:         cert.IssuedAt,
			LicenseID:        cert.LicenseID,
			AssetID:          cert.AssetID,
			AssetTitle:       cert.AssetTitle,
			LicenseeID:       cert.LicenseeID,
			Tier:             cert.Tier,
			DocumentLocation: documentLocation,
			Degraded:         degraded,
		},
		AssetID:   cert.AssetID,
		Timestamp: time.Now(),
	}
}

// NewLedgerUpdatedEvent creates a ledger.updated event for rec.
func NewLedgerUpdatedEvent(rec *domain.PopularityRecord) Event {
	return Event{
		Type:      EventLedgerUpdated,
		Data:      LedgerUpdatedEventData{Record: rec},
		AssetID:   rec.AssetID,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
