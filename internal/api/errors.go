package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/ffmirror/ffserve/internal/errors"
	"github.com/ffmirror/ffserve/internal/queue"
	"github.com/ffmirror/ffserve/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}

			if isNotFoundError(err) {
				return &APIError{
					status:  http.StatusNotFound,
					Code:    string(domainerrors.CodeNotFound),
					Message: err.Error(),
				}
			}
		}

		// huma reports its own request validation failures as 422.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
			Details: errorDetails(errs),
		}
	}
}

// isNotFoundError checks if the error is a "not found" type error from the store or queue.
func isNotFoundError(err error) bool {
	// Catches ErrNotFound and all ErrNotFound.WithMessage() variants.
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.HTTPCode() == http.StatusNotFound {
		return true
	}
	return errors.Is(err, queue.ErrNotFound)
}

// errorDetails keeps huma's per-field messages, if any.
func errorDetails(errs []error) any {
	var details []string
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusBadGateway:
		return string(domainerrors.CodeFetchFailed)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	default:
		return string(domainerrors.CodeInternal)
	}
}
