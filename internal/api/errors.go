package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/graphgen-api/internal/api/shared"
	"github.com/phrazzld/graphgen-api/internal/catalog"
	"github.com/phrazzld/graphgen-api/internal/job"
	"github.com/phrazzld/graphgen-api/internal/platform/postgres"
	"github.com/phrazzld/graphgen-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so internal
// error types never reach clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// a missing config is reported as not found even though it is also a
	// validation failure
	case errors.Is(err, job.ErrConfigNotFound),
		errors.Is(err, job.ErrNotFound),
		errors.Is(err, catalog.ErrPresetNotFound),
		errors.Is(err, postgres.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, job.ErrValidation):
		return http.StatusBadRequest

	default:
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, job.ErrConfigNotFound):
		return "Config file not found"
	case errors.Is(err, job.ErrNotFound):
		return "Job not found"
	case errors.Is(err, catalog.ErrPresetNotFound):
		return "Configuration not found"
	case errors.Is(err, job.ErrValidation):
		return "Invalid job request"
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return SanitizeValidationError(validationErrs)
	}
	return "An unexpected error occurred"
}

// SanitizeValidationError describes the first failed field without echoing
// the submitted value.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	fe := errs[0]
	return fmt.Sprintf("Invalid %s: %s", fieldName(fe.Namespace()), validationTagMessage(fe.Tag()))
}

// fieldName turns "CreateRequest.LLMSettings.TraineeBaseURL" into
// "LLMSettings.TraineeBaseURL".
func fieldName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid URL"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. customMsg, when not
// empty, replaces the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, customMsg string) {
	msg := customMsg
	if msg == "" {
		msg = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), msg, err)
}
