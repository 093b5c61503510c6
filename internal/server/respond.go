package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps an error to an HTTP status via its Kind. Repository
// sentinels map to 404 without needing an AppError wrapper.
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("Request failed: %v", err)
	}

	var body errorBody
	body.Error.Kind = exception.KindOf(err).String()
	body.Error.Message = exception.ExtractErrorMessage(err)
	if isNotFound(err) {
		body.Error.Kind = exception.KindNotFound.String()
	}
	writeJSON(w, status, body)
}

func statusOf(err error) int {
	if isNotFound(err) {
		return http.StatusNotFound
	}
	switch exception.KindOf(err) {
	case exception.KindValidation:
		return http.StatusBadRequest
	case exception.KindNotFound:
		return http.StatusNotFound
	case exception.KindConflict:
		return http.StatusConflict
	case exception.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case exception.KindAdapter:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrFormNotFound) ||
		errors.Is(err, repository.ErrBatchNotFound) ||
		errors.Is(err, repository.ErrDocumentNotFound) ||
		errors.Is(err, repository.ErrTestRunNotFound) ||
		errors.Is(err, repository.ErrResultNotFound)
}

// decodeJSON reads a JSON request body into v, reporting malformed bodies
// as unprocessable.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return exception.NewAppError("server", "malformed request body", err, exception.KindUnprocessable)
	}
	return nil
}
