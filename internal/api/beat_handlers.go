package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/beatvault/beatvault-server/internal/domain"
	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

func (s *Server) registerBeatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getTopBeats",
		Method:      http.MethodGet,
		Path:        "/api/v1/beats/top",
		Summary:     "Top beats",
		Description: "Ranks beats by popularity score, then most recent license, then asset ID",
		Tags:        []string{"Beats"},
	}, s.handleTopBeats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBeatStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/beats/{assetId}/stats",
		Summary:     "Beat stats",
		Description: "Returns the popularity record for a beat",
		Tags:        []string{"Beats"},
	}, s.handleGetBeatStats)
}

// PopularityResponse is a beat's popularity record in API responses.
type PopularityResponse struct {
	AssetID         string         `json:"asset_id" doc:"Beat identifier"`
	AssetTitle      string         `json:"asset_title" doc:"Title from the first issuance"`
	TierBreakdown   map[string]int `json:"tier_breakdown" doc:"Licenses issued per tier"`
	TotalLicenses   int            `json:"total_licenses" doc:"Licenses issued across all tiers"`
	TotalRevenue    float64        `json:"total_revenue" doc:"Revenue in dollars, rounded to cents"`
	PopularityScore int            `json:"popularity_score" doc:"Weighted license count"`
	FirstLicensedAt time.Time      `json:"first_licensed_at" doc:"First issuance"`
	LastLicensedAt  time.Time      `json:"last_licensed_at" doc:"Most recent issuance"`
}

func toPopularityResponse(rec *domain.PopularityRecord) PopularityResponse {
	breakdown := make(map[string]int, len(rec.TierBreakdown))
	for tier, n := range rec.TierBreakdown {
		breakdown[string(tier)] = n
	}
	return PopularityResponse{
		AssetID:         rec.AssetID,
		AssetTitle:      rec.AssetTitle,
		TierBreakdown:   breakdown,
		TotalLicenses:   rec.TotalLicenses,
		TotalRevenue:    rec.TotalRevenue,
		PopularityScore: rec.PopularityScore,
		FirstLicensedAt: rec.FirstLicensedAt,
		LastLicensedAt:  rec.LastLicensedAt,
	}
}

// BeatStatsInput identifies a beat.
type BeatStatsInput struct {
	AssetID string `path:"assetId" doc:"Beat identifier"`
}

// BeatStatsOutput wraps a popularity record for Huma.
type BeatStatsOutput struct {
	Body PopularityResponse
}

func (s *Server) handleGetBeatStats(ctx context.Context, input *BeatStatsInput) (*BeatStatsOutput, error) {
	rec, ok, err := s.services.Ledger.GetStats(ctx, input.AssetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFoundf("no licenses issued for asset %s", input.AssetID)
	}
	return &BeatStatsOutput{Body: toPopularityResponse(rec)}, nil
}

// TopBeatsInput holds the ranking size.
type TopBeatsInput struct {
	Limit int `query:"limit" default:"10" minimum:"0" maximum:"100" doc:"Number of beats to return"`
}

// TopBeatsResponse lists ranked beats, best first.
type TopBeatsResponse struct {
	Beats []PopularityResponse `json:"beats" doc:"Ranked popularity records"`
}

// TopBeatsOutput wraps the ranking for Huma.
type TopBeatsOutput struct {
	Body TopBeatsResponse
}

func (s *Server) handleTopBeats(ctx context.Context, input *TopBeatsInput) (*TopBeatsOutput, error) {
	records, err := s.services.Ledger.TopN(ctx, input.Limit)
	if err != nil {
		return nil, err
	}

	beats := make([]PopularityResponse, 0, len(records))
	for _, rec := range records {
		beats = append(beats, toPopularityResponse(rec))
	}
	return &TopBeatsOutput{Body: TopBeatsResponse{Beats: beats}}, nil
}
