package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/metrics"
)

// maxBodyBytes caps request bodies; assessments are the largest documents.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string              `json:"error"`
	Retryable bool                `json:"retryable,omitempty"`
	Errors    []apperr.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError maps err to a status code by kind. Unclassified errors are
// logged and reported as 500 without their message.
func writeError(w http.ResponseWriter, m *metrics.Manager, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		m.RecordError("validation")
		writeJSON(w, ErrorBody{Error: apperr.ErrValidationFailed.Error(), Errors: verr.Errors}, http.StatusUnprocessableEntity)
	case errors.Is(err, apperr.ErrNotFound):
		m.RecordError("not_found")
		writeJSON(w, ErrorBody{Error: err.Error()}, http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		m.RecordError("conflict")
		writeJSON(w, ErrorBody{Error: err.Error()}, http.StatusConflict)
	case errors.Is(err, apperr.ErrInvalidInput):
		m.RecordError("invalid_input")
		writeJSON(w, ErrorBody{Error: err.Error()}, http.StatusBadRequest)
	case apperr.Retryable(err):
		m.RecordError("transient")
		writeJSON(w, ErrorBody{Error: err.Error(), Retryable: true}, http.StatusServiceUnavailable)
	default:
		m.RecordError("internal")
		logger.Error("request failed", slog.Any("err", err))
		writeJSON(w, ErrorBody{Error: "internal error"}, http.StatusInternalServerError)
	}
}

// decodeJSON reads a single JSON document from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput("invalid request body: %v", err)
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxBodyBytes {
		return nil, apperr.InvalidInput("request body exceeds %d bytes", maxBodyBytes)
	}
	return b, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.InvalidInput("%s must be an integer, got %q", name, s)
	}
	return n, nil
}

func pageParams(r *http.Request) (page, size int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(r, "pageSize"); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}
