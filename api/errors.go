package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/warp/estimate-engine/factory"
	"github.com/warp/estimate-engine/store/sqlite"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrUnknownScenario is returned when a scenario id is not in the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrEstimateNotFound is returned when a stored estimate does not exist.
	ErrEstimateNotFound = errors.New("estimate not found")

	// ErrStorageDisabled is returned by history endpoints when the server
	// runs without a store.
	ErrStorageDisabled = errors.New("estimate storage is disabled")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, factory.ErrInvalidRequest)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownScenario) ||
		errors.Is(err, ErrEstimateNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, sqlite.ErrDuplicateEstimate)
}

// writeFailure maps an error to its HTTP status and error code. Server-side
// failures are logged; client mistakes are not.
func writeFailure(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case IsClientError(err):
		status, code = http.StatusBadRequest, "invalid_request"
	case IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, ErrStorageDisabled):
		status, code = http.StatusServiceUnavailable, "storage_disabled"
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(message)
	}
	writeError(w, status, code, message, err)
}
