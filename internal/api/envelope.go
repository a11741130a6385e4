package api

import (
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/ffmirror/ffserve/internal/errors"
)

// EnvelopeVersion is bumped on breaking changes to the envelope shape.
const EnvelopeVersion = 1

// Envelope wraps every JSON response body.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer is a huma transformer wrapping bodies in an Envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if _, ok := v.(Envelope); ok {
		return v, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		return Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Details: apiErr.Details,
		}, nil
	}

	if domainErr, ok := v.(*domainerrors.Error); ok {
		return Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   domainErr.Message,
			Code:    string(domainErr.Code),
			Details: domainErr.Details,
		}, nil
	}

	// Anything huma produced itself on a failing status.
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if err, ok := v.(error); ok {
			code, _ := strconv.Atoi(status) //nolint:errcheck // huma always passes a numeric status
			return Envelope{Version: EnvelopeVersion, Success: false, Error: err.Error(), Code: statusToCode(code)}, nil
		}
	}

	return Envelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
}
