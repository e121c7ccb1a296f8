package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// WriteError is writeError for callers outside the package (router
// fallbacks, middleware).
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeError(w, status, msg)
}

// writeServiceError maps a service error onto a status code. Anything not
// recognised is logged and answered with a generic 500 carrying fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrMarketInactive):
		writeError(w, http.StatusBadRequest, domain.ErrMarketInactive.Error())
	case errors.Is(err, domain.ErrInvalidOutcome):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidOutcome.Error())
	case errors.Is(err, domain.ErrAlreadySettled):
		writeError(w, http.StatusConflict, domain.ErrAlreadySettled.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "market busy, retry")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
	default:
		logger.ErrorContext(r.Context(), fallback,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a single JSON object from the body into dst. Unknown
// fields are ignored; trailing garbage and oversize bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// parseListOpts extracts pagination parameters from the query string.
// Without a limit every row is returned; an explicit limit is capped at 500.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	v := &domain.Validator{}
	var opts domain.ListOpts

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		v.Check(err == nil && n > 0, "limit", "limit must be a positive integer")
		opts.Limit = min(n, 500)
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		v.Check(err == nil && n >= 0, "offset", "offset must be a non-negative integer")
		opts.Offset = n
	}
	return opts, v.Err()
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
