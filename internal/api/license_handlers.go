package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
	"github.com/beatvault/beatvault-server/internal/search"
)

func (s *Server) registerLicenseRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "issueLicense",
		Method:        http.MethodPost,
		Path:          "/api/v1/licenses",
		Summary:       "Issue license",
		Description:   "Issues a license certificate for a beat and records it in the popularity ledger",
		Tags:          []string{"Licenses"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.issueRateLimit},
	}, s.handleIssueLicense)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchLicenses",
		Method:      http.MethodGet,
		Path:        "/api/v1/licenses/search",
		Summary:     "Search licenses",
		Description: "Full-text search over issued certificates by title, producer, licensee or ID",
		Tags:        []string{"Licenses"},
	}, s.handleSearchLicenses)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLicense",
		Method:      http.MethodGet,
		Path:        "/api/v1/licenses/{licenseId}",
		Summary:     "Get license",
		Description: "Looks up an issued license by its exact ID",
		Tags:        []string{"Licenses"},
	}, s.handleGetLicense)

	huma.Register(s.api, huma.Operation{
		OperationID: "verifyLicense",
		Method:      http.MethodGet,
		Path:        "/api/v1/licenses/{licenseId}/verify",
		Summary:     "Verify license document",
		Description: "Checks the stored certificate against the fingerprint recorded at issuance",
		Tags:        []string{"Licenses"},
	}, s.handleVerifyLicense)
}

// IssueLicenseRequest is the body of POST /api/v1/licenses.
type IssueLicenseRequest struct {
	AssetID       string `json:"asset_id" maxLength:"128" doc:"Identifier of the beat being licensed"`
	AssetTitle    string `json:"asset_title,omitempty" maxLength:"256" doc:"Beat title, defaults to Untitled Beat"`
	LicenseeID    string `json:"licensee_id" maxLength:"128" doc:"Identifier of the buyer"`
	LicenseeEmail string `json:"licensee_email,omitempty" doc:"Buyer email shown on the certificate"`
	ArtistName    string `json:"artist_name,omitempty" maxLength:"256" doc:"Producer credited on the certificate"`
	Tier          string `json:"tier" doc:"License tier: base or top"`
	LicenseID     string `json:"license_id,omitempty" maxLength:"128" doc:"Caller-supplied license ID; generated when empty"`
}

// IssueLicenseInput wraps the issue request for Huma.
type IssueLicenseInput struct {
	Body IssueLicenseRequest
}

// IssueLicenseResponse is returned after issuance.
// Degraded means the certificate exists but the ledger was not updated.
type IssueLicenseResponse struct {
	LicenseID        string              `json:"license_id" doc:"Issued license ID"`
	DocumentLocation string              `json:"document_location" doc:"Path of the stored certificate"`
	Degraded         bool                `json:"degraded" doc:"True when the ledger update failed"`
	LedgerError      string              `json:"ledger_error,omitempty" doc:"Ledger failure, when degraded"`
	Record           *PopularityResponse `json:"record,omitempty" doc:"Popularity record after this issuance"`
}

// IssueLicenseOutput wraps the issue response for Huma.
type IssueLicenseOutput struct {
	Body IssueLicenseResponse
}

func (s *Server) handleIssueLicense(ctx context.Context, input *IssueLicenseInput) (*IssueLicenseOutput, error) {
	res, err := s.services.License.Issue(ctx, domain.IssueRequest{
		AssetID:       input.Body.AssetID,
		AssetTitle:    input.Body.AssetTitle,
		LicenseeID:    input.Body.LicenseeID,
		LicenseeEmail: input.Body.LicenseeEmail,
		ArtistName:    input.Body.ArtistName,
		Tier:          domain.Tier(input.Body.Tier),
		LicenseID:     input.Body.LicenseID,
	})
	if err != nil {
		return nil, err
	}

	out := IssueLicenseResponse{
		LicenseID:        res.LicenseID,
		DocumentLocation: res.DocumentLocation,
		Degraded:         res.Degraded,
	}
	if res.LedgerError != nil {
		out.LedgerError = res.LedgerError.Error()
	}
	if res.Record != nil {
		rec := toPopularityResponse(res.Record)
		out.Record = &rec
	}

	return &IssueLicenseOutput{Body: out}, nil
}

// LicenseIDInput identifies a license by exact ID.
type LicenseIDInput struct {
	LicenseID string `path:"licenseId" doc:"Exact license ID"`
}

// LicenseResponse is a license index entry.
type LicenseResponse struct {
	LicenseID        string    `json:"license_id" doc:"License ID"`
	AssetID          string    `json:"asset_id" doc:"Licensed beat"`
	AssetTitle       string    `json:"asset_title" doc:"Beat title at issuance"`
	LicenseeID       string    `json:"licensee_id" doc:"Buyer"`
	Tier             string    `json:"tier" doc:"License tier"`
	DocumentLocation string    `json:"document_location" doc:"Path of the stored certificate"`
	Fingerprint      string    `json:"fingerprint" doc:"BLAKE2b-256 of the certificate document"`
	IssuedAt         time.Time `json:"issued_at" doc:"Issuance time"`
}

// LicenseOutput wraps a license for Huma.
type LicenseOutput struct {
	Body LicenseResponse
}

func (s *Server) handleGetLicense(ctx context.Context, input *LicenseIDInput) (*LicenseOutput, error) {
	entry, ok, err := s.services.Ledger.GetLicense(ctx, input.LicenseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFoundf("license %s not found", input.LicenseID)
	}

	return &LicenseOutput{Body: LicenseResponse{
		LicenseID:        entry.LicenseID,
		AssetID:          entry.AssetID,
		AssetTitle:       entry.AssetTitle,
		LicenseeID:       entry.LicenseeID,
		Tier:             string(entry.Tier),
		DocumentLocation: entry.DocumentPath,
		Fingerprint:      entry.Fingerprint,
		IssuedAt:         entry.IssuedAt,
	}}, nil
}

// VerifyLicenseResponse reports whether a stored certificate is intact.
type VerifyLicenseResponse struct {
	LicenseID string `json:"license_id" doc:"License ID"`
	Valid     bool   `json:"valid" doc:"True when the document matches its recorded fingerprint"`
}

// VerifyLicenseOutput wraps the verification result for Huma.
type VerifyLicenseOutput struct {
	Body VerifyLicenseResponse
}

func (s *Server) handleVerifyLicense(ctx context.Context, input *LicenseIDInput) (*VerifyLicenseOutput, error) {
	valid, err := s.services.Ledger.VerifyLicenseDocument(ctx, input.LicenseID)
	if err != nil {
		return nil, err
	}
	return &VerifyLicenseOutput{Body: VerifyLicenseResponse{LicenseID: input.LicenseID, Valid: valid}}, nil
}

// SearchLicensesInput holds search query parameters.
type SearchLicensesInput struct {
	Query      string `query:"q" doc:"Search text"`
	Tier       string `query:"tier" enum:"base,top" doc:"Only licenses of this tier"`
	AssetID    string `query:"asset_id" doc:"Only licenses for this beat"`
	LicenseeID string `query:"licensee_id" doc:"Only licenses held by this buyer"`
	Sort       string `query:"sort" enum:"relevance,recent" default:"relevance" doc:"Result order"`
	Limit      int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset     int    `query:"offset" minimum:"0" doc:"Results to skip"`
}

// SearchLicensesOutput wraps search results for Huma.
type SearchLicensesOutput struct {
	Body *search.SearchResult
}

func (s *Server) handleSearchLicenses(ctx context.Context, input *SearchLicensesInput) (*SearchLicensesOutput, error) {
	result, err := s.services.Ledger.SearchLicenses(ctx, search.SearchParams{
		Query:      input.Query,
		Tier:       input.Tier,
		AssetID:    input.AssetID,
		LicenseeID: input.LicenseeID,
		Limit:      input.Limit,
		Offset:     input.Offset,
		SortBy:     input.Sort,
	})
	if err != nil {
		return nil, err
	}
	return &SearchLicensesOutput{Body: result}, nil
}
