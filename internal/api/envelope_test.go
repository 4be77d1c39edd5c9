package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

func marshalMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "L-1"})
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, map[string]any{
		"v":       float64(1),
		"success": true,
		"data":    map[string]any{"id": "L-1"},
	}, out)
}

func TestEnvelopeTransformer_NilData(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, map[string]any{"v": float64(1), "success": true}, out)
}

func TestEnvelopeTransformer_Error(t *testing.T) {
	apiErr := &APIError{status: http.StatusNotFound, Code: "NOT_FOUND", Message: "license L-1 not found"}
	result, err := EnvelopeTransformer(nil, "404", apiErr)
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, map[string]any{
		"v":       float64(1),
		"success": false,
		"error":   "license L-1 not found",
		"code":    "NOT_FOUND",
	}, out)
}

func TestEnvelopeTransformer_AlreadyWrapped(t *testing.T) {
	env := &Envelope{V: envelopeVersion, Success: true, Data: "x"}
	result, err := EnvelopeTransformer(nil, "200", env)
	require.NoError(t, err)
	assert.Same(t, env, result)
}

func TestNewError_DomainErrors(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domainerrors.InvalidRequest("bad"), http.StatusBadRequest, "INVALID_REQUEST"},
		{domainerrors.NotFoundf("missing %s", "A1"), http.StatusNotFound, "NOT_FOUND"},
		{domainerrors.DuplicateLicenseIDf("license %s exists", "L-1"), http.StatusConflict, "DUPLICATE_LICENSE_ID"},
		{domainerrors.StoreUnavailable(errors.New("disk"), "ledger unavailable"), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{domainerrors.RateLimited("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
		{domainerrors.Internalf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			statusErr := huma.NewError(http.StatusInternalServerError, "ignored", tt.err)
			assert.Equal(t, tt.wantStatus, statusErr.GetStatus())

			var apiErr *APIError
			require.ErrorAs(t, statusErr, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestNewError_SchemaViolationsBecomeBadRequest(t *testing.T) {
	RegisterErrorHandler()

	statusErr := huma.NewError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.tier", Message: "expected required property tier to be present"})

	var apiErr *APIError
	require.ErrorAs(t, statusErr, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.GetStatus())
	assert.Equal(t, "INVALID_REQUEST", apiErr.Code)
	assert.Equal(t, map[string]string{"body.tier": "expected required property tier to be present"}, apiErr.Details)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", clientIP("203.0.113.7:5123"))
	assert.Equal(t, "203.0.113.7", clientIP("203.0.113.7"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
}
