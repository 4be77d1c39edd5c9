package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is the "v" field of every response body. Bump it on breaking changes.
const envelopeVersion = 1

// Envelope is the JSON body of every API response.
type Envelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps response bodies in an Envelope.
// Errors carry "error", "code" and "details"; everything else goes under "data".
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *Envelope, Envelope:
		return body, nil
	case *APIError:
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   body.Message,
			Code:    body.Code,
			Details: body.Details,
		}, nil
	default:
		return &Envelope{
			V:       envelopeVersion,
			Success: true,
			Data:    v,
		}, nil
	}
}
