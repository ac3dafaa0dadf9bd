// Package response writes the JSON envelopes used by the local API.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/deckimport"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse represents a successful API response with data.
type SuccessResponse struct {
	Data any `json:"data"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data       any  `json:"data"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	})
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, err error) {
	Error(w, http.StatusBadRequest, err)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, err error) {
	Error(w, http.StatusNotFound, err)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, err error) {
	Error(w, http.StatusInternalServerError, err)
}

// ServiceUnavailable writes a 503 Service Unavailable response.
func ServiceUnavailable(w http.ResponseWriter, err error) {
	Error(w, http.StatusServiceUnavailable, err)
}

// FromError writes err with the status code its kind maps to.
func FromError(w http.ResponseWriter, err error) {
	var formatErr *deckimport.FormatError
	if errors.As(err, &formatErr) {
		JSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: formatErr.Error(),
			Hint:    formatErr.Hint(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	Error(w, StatusFor(err), err)
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	var rejected *backend.RejectedError

	switch {
	case errors.Is(err, deckstate.ErrNoDeckSelected):
		return http.StatusConflict
	case errors.Is(err, deckstate.ErrInvalidCard),
		errors.Is(err, deckstate.ErrInvalidIndex),
		errors.Is(err, deckstate.ErrCardNotResolved):
		return http.StatusBadRequest
	case errors.Is(err, deckstate.ErrCardNotInDeck),
		errors.Is(err, cardlookup.ErrCardNotFound):
		return http.StatusNotFound
	case errors.As(err, &rejected):
		if rejected.Status >= 400 && rejected.Status < 500 {
			return rejected.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Paginated writes a paginated response.
func Paginated(w http.ResponseWriter, data any, page, pageSize, totalCount int) {
	totalPages := (totalCount + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	JSON(w, http.StatusOK, PaginatedResponse{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	})
}
