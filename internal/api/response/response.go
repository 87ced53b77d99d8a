// Package response writes the JSON envelopes every API route returns.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/tradecost/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	})
}

// Error writes an error response. Errors without a code are reported as
// INTERNAL_ERROR and their text is not exposed.
func Error(w http.ResponseWriter, status int, err error) {
	write(w, status, ErrorResponse{Error: detailOf(err)})
}

func detailOf(err error) ErrorDetail {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return ErrorDetail{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}
	d := ErrorDetail{Code: coreErr.Code, Message: coreErr.Message}
	if coreErr.Cause != nil {
		d.Cause = coreErr.Cause.Error()
	}
	return d
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// FromError writes err with the status StatusFor picks.
func FromError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}
