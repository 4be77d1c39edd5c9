package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/id"
	"github.com/beatvault/beatvault-server/internal/logger"
	"github.com/beatvault/beatvault-server/internal/popularity"
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/sse"
	"github.com/beatvault/beatvault-server/internal/store"
	"github.com/beatvault/beatvault-server/internal/validation"
)

// maxGeneratedIDAttempts bounds retries when a generated license ID collides.
const maxGeneratedIDAttempts = 3

// EventEmitter publishes issuance events. *sse.Manager implements it.
type EventEmitter interface {
	Emit(event sse.Event)
}

// LicenseServiceConfig holds issuance settings.
type LicenseServiceConfig struct {
	IDPrefix     string
	IssueTimeout time.Duration
}

// LicenseService issues licenses: it reserves the license ID, writes the
// certificate document and feeds the popularity ledger.
type LicenseService struct {
	store      store.LedgerStore
	aggregator *popularity.Aggregator
	documents  *certificate.Storage
	index      *search.SearchIndex
	events     EventEmitter
	validator  *validation.Validator
	logger     *slog.Logger
	now        func() time.Time
	cfg        LicenseServiceConfig
}

// NewLicenseService creates a license service. index and events may be nil.
func NewLicenseService(
	ledger store.LedgerStore,
	aggregator *popularity.Aggregator,
	documents *certificate.Storage,
	index *search.SearchIndex,
	events EventEmitter,
	validator *validation.Validator,
	cfg LicenseServiceConfig,
	logger *slog.Logger,
) *LicenseService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "BV"
	}
	return &LicenseService{
		store:      ledger,
		aggregator: aggregator,
		documents:  documents,
		index:      index,
		events:     events,
		validator:  validator,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Issue issues a license for req.
//
// A failure to reserve the ID or write the certificate fails the issuance and
// leaves nothing behind. A ledger failure after the certificate is written is
// reported as a degraded result, not an error: the certificate stands.
func (s *LicenseService) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssueResult, error) {
	if s.cfg.IssueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.IssueTimeout)
		defer cancel()
	}

	req = trimRequest(req)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	issuedAt := s.now().UTC()
	cert, body, entry, err := s.reserve(ctx, req, issuedAt)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, s.logger).With("license_id", cert.LicenseID, "asset_id", cert.AssetID)

	path, _, err := s.documents.Write(cert.AssetTitle, cert.LicenseID, body)
	if err != nil {
		// The reservation must not outlive a failed write, even if ctx has expired.
		if delErr := s.store.DeleteLicense(context.WithoutCancel(ctx), cert.LicenseID); delErr != nil {
			log.Error("failed to roll back license reservation", "error", delErr)
		}
		if errors.Is(err, certificate.ErrExists) {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "certificate document for %s already exists", cert.LicenseID)
		}
		return nil, domainerrors.StoreUnavailable(err, "write certificate document")
	}

	result := &domain.IssueResult{
		LicenseID:        cert.LicenseID,
		DocumentLocation: path,
	}

	rec, err := s.aggregator.Apply(ctx, popularity.Event{
		IssuedAt:   issuedAt,
		AssetID:    cert.AssetID,
		AssetTitle: cert.AssetTitle,
		Tier:       cert.Tier,
	})
	if err != nil {
		log.Error("license issued but ledger update failed", "error", err)
		result.Degraded = true
		result.LedgerError = err
	} else {
		result.Record = rec
	}

	s.publish(cert, entry, result)

	log.Info("license issued",
		"tier", cert.Tier,
		"licensee_id", cert.LicenseeID,
		"document", path,
		"degraded", result.Degraded,
	)

	return result, nil
}

// reserve builds the certificate and claims its license ID in the index.
// Generated IDs that collide are regenerated; caller-supplied ones are rejected.
func (s *LicenseService) reserve(ctx context.Context, req domain.IssueRequest, issuedAt time.Time) (domain.Certificate, []byte, *domain.LicenseEntry, error) {
	callerSupplied := req.LicenseID != ""

	for attempt := 1; ; attempt++ {
		licenseID := req.LicenseID
		if !callerSupplied {
			generated, err := id.LicenseID(s.cfg.IDPrefix, issuedAt)
			if err != nil {
				return domain.Certificate{}, nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate license id")
			}
			licenseID = generated
		}

		cert := certificate.Build(req, licenseID, issuedAt, s.aggregator.Table())
		body, err := certificate.Render(cert)
		if err != nil {
			return domain.Certificate{}, nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "render certificate")
		}

		entry := &domain.LicenseEntry{
			IssuedAt:     issuedAt,
			LicenseID:    licenseID,
			AssetID:      cert.AssetID,
			AssetTitle:   cert.AssetTitle,
			LicenseeID:   cert.LicenseeID,
			Tier:         cert.Tier,
			DocumentPath: s.documents.PathFor(cert.AssetTitle, licenseID),
			Fingerprint:  certificate.Fingerprint(body),
		}

		err = s.store.CreateLicense(ctx, entry)
		if err == nil {
			return cert, body, entry, nil
		}
		if callerSupplied || !errors.Is(err, domainerrors.ErrDuplicateLicenseID) || attempt >= maxGeneratedIDAttempts {
			return domain.Certificate{}, nil, nil, err
		}
		s.logger.Debug("generated license id collided, retrying", "license_id", licenseID, "attempt", attempt)
	}
}

// publish indexes the certificate and emits events. Failures are logged only.
func (s *LicenseService) publish(cert domain.Certificate, entry *domain.LicenseEntry, result *domain.IssueResult) {
	if s.index != nil {
		if err := s.index.IndexDocument(search.FromCertificate(cert)); err != nil {
			s.logger.Warn("failed to index certificate", "license_id", entry.LicenseID, "error", err)
		}
	}

	if s.events == nil {
		return
	}
	s.events.Emit(sse.NewLicenseIssuedEvent(cert, result.DocumentLocation, result.Degraded))
	if result.Record != nil {
		s.events.Emit(sse.NewLedgerUpdatedEvent(result.Record))
	}
}

func trimRequest(req domain.IssueRequest) domain.IssueRequest {
	req.AssetID = strings.TrimSpace(req.AssetID)
	req.AssetTitle = strings.TrimSpace(req.AssetTitle)
	req.LicenseeID = strings.TrimSpace(req.LicenseeID)
	req.LicenseeEmail = strings.TrimSpace(req.LicenseeEmail)
	req.ArtistName = strings.TrimSpace(req.ArtistName)
	req.LicenseID = strings.TrimSpace(req.LicenseID)
	req.Tier = domain.Tier(strings.ToLower(strings.TrimSpace(string(req.Tier))))
	return req
}
