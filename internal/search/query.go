package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders accepted by SearchParams.SortBy.
const (
	SortRelevance = "relevance"
	SortRecent    = "recent"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// SearchParams configures a certificate search.
type SearchParams struct {
	Query string

	// Exact-match filters, ANDed with the text query.
	Tier       string
	AssetID    string
	LicenseeID string

	Limit  int
	Offset int
	SortBy string // SortRelevance (default) or SortRecent
}

// SearchResult holds one page of hits plus tier facet counts.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Tiers  []FacetCount `json:"tiers,omitempty"`
}

// SearchHit is a single matching certificate.
type SearchHit struct {
	LicenseID  string            `json:"license_id"`
	Score      float64           `json:"score"`
	AssetID    string            `json:"asset_id"`
	AssetTitle string            `json:"asset_title"`
	LicenseeID string            `json:"licensee_id"`
	ArtistName string            `json:"artist_name,omitempty"`
	Tier       string            `json:"tier"`
	IssuedAt   int64             `json:"issued_at"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs params against the index.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, max(params.Offset, 0), false)

	if params.SortBy == SortRecent {
		req.SortBy([]string{"-issued_at", "license_id"})
	} else {
		req.SortBy([]string{"-_score", "-issued_at"})
	}

	req.AddFacet("tier", bleve.NewFacetRequest("tier", 5))

	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("asset_title")
	req.Highlight.AddField("artist_name")

	req.Fields = []string{"license_id", "asset_id", "asset_title", "licensee_id", "artist_name", "tier", "issued_at"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{
			LicenseID: hit.ID,
			Score:     hit.Score,
		}
		h.AssetID, _ = hit.Fields["asset_id"].(string)
		h.AssetTitle, _ = hit.Fields["asset_title"].(string)
		h.LicenseeID, _ = hit.Fields["licensee_id"].(string)
		h.ArtistName, _ = hit.Fields["artist_name"].(string)
		h.Tier, _ = hit.Fields["tier"].(string)
		if ts, ok := hit.Fields["issued_at"].(float64); ok {
			h.IssuedAt = int64(ts)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if tierFacet, ok := res.Facets["tier"]; ok && tierFacet.Terms != nil {
		for _, term := range tierFacet.Terms.Terms() {
			result.Tiers = append(result.Tiers, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return result, nil
}

// buildSearchQuery matches the text against title and producer (stemmed,
// fuzzy and prefix) and against the identifier fields exactly. Filters are ANDed.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	text := strings.TrimSpace(params.Query)
	if text != "" {
		titleMatch := bleve.NewMatchQuery(text)
		titleMatch.SetField("asset_title")
		titleMatch.SetBoost(3.0)

		artistMatch := bleve.NewMatchQuery(text)
		artistMatch.SetField("artist_name")
		artistMatch.SetBoost(1.5)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("asset_title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, artistMatch, fuzzy}

		if len(text) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(text))
			prefix.SetField("asset_title")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		for _, field := range []string{"license_id", "licensee_id", "asset_id"} {
			term := bleve.NewTermQuery(text)
			term.SetField(field)
			term.SetBoost(5.0)
			textQueries = append(textQueries, term)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	for field, value := range map[string]string{
		"tier":        params.Tier,
		"asset_id":    params.AssetID,
		"licensee_id": params.LicenseeID,
	} {
		if value == "" {
			continue
		}
		term := bleve.NewTermQuery(value)
		term.SetField(field)
		queries = append(queries, term)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}
