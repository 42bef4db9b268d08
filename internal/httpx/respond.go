// Package httpx holds the JSON envelope, request decoding and auth middleware shared by every HTTP handler.
package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/logger"
	"github.com/oggyb/kinnect/internal/validation"
)

// maxBodyBytes caps JSON request bodies. Multipart uploads have their own limit.
const maxBodyBytes = 1 << 20

// Envelope is the body of every response: Data on success, Error on failure.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is the client-visible error payload.
type APIError struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

// Page wraps an offset-paginated listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// CursorPage wraps a cursor-paginated listing.
type CursorPage[T any] struct {
	Items               []T     `json:"items"`
	NextPaginationToken *string `json:"nextPaginationToken,omitempty"`
}

// JSON writes data inside the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Data: data})
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error maps err to its status bucket and writes the error envelope.
// Internal failures are logged with the request-scoped logger and reduced to a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestError
	if errors.As(err, &verr) {
		write(w, http.StatusBadRequest, Envelope{Error: &APIError{
			Code:    "VALIDATION_ERROR",
			Message: verr.Error(),
			Fields:  verr.Fields,
		}})
		return
	}

	de := svcErr.As(err)
	status := svcErr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), logger.L()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	write(w, status, Envelope{Error: &APIError{Code: de.Code, Message: de.Message}})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to marshal response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Decode reads a JSON body into dst and runs struct validation on it.
func Decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return svcErr.InvalidArgument("INVALID_BODY", "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return svcErr.InvalidArgument("BODY_TOO_LARGE", "request body is too large")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return svcErr.InvalidArgument("INVALID_JSON", "request body is not valid JSON")
	}
	return validation.Struct(dst)
}

// QueryInt reads an integer query parameter, falling back to def when absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryBool reads a boolean query parameter.
func QueryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// QueryToken returns the pagination token query parameter, or nil when absent.
func QueryToken(r *http.Request) *string {
	v := r.URL.Query().Get("paginationToken")
	if v == "" {
		return nil
	}
	return &v
}
