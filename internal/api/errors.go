package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status    int
	Code      string `json:"code" doc:"Machine-readable error code"`
	Message   string `json:"message" doc:"Human-readable error message"`
	Details   any    `json:"details,omitempty" doc:"Additional error details"`
	Retryable bool   `json:"retryable,omitempty" doc:"Whether the same request may succeed later"`
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
			if apiErr := fromDomain(err); apiErr != nil {
				return apiErr
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
		// Huma reports request decoding problems as a list of field errors.
		if len(errs) > 0 && status == http.StatusUnprocessableEntity {
			apiErr.status = http.StatusBadRequest
			apiErr.Code = string(domainerrors.CodeValidation)
			apiErr.Details = fieldErrors(errs)
		}
		return apiErr
	}
}

// fromDomain converts err to an APIError when it carries a domain code.
// Store sentinels that escaped the domain layer are mapped too.
func fromDomain(err error) *APIError {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		// Internal detail stays in the logs.
		msg := domainErr.Message
		if domainErr.Code == domainerrors.CodeStoreFailure || domainErr.Code == domainerrors.CodeInternal {
			msg = "internal error"
		}
		return &APIError{
			status:    domainErr.HTTPStatus(),
			Code:      string(domainErr.Code),
			Message:   msg,
			Details:   domainErr.Details,
			Retryable: domainErr.Code.Retryable(),
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		return &APIError{
			status:  http.StatusNotFound,
			Code:    string(domainerrors.CodeNotFound),
			Message: err.Error(),
		}
	}
	return nil
}

func fieldErrors(errs []error) map[string]string {
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			details[detail.Location] = detail.Message
		}
	}
	return details
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return string(domainerrors.CodeInternal)
	}
}
