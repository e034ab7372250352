// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"errors"
	"net/http"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
)

// JSON responds with 200 OK and the payload.
func JSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	render.JSON(w, r, v)
}

// Created responds with 201 Created and the payload.
func Created(w http.ResponseWriter, r *http.Request, v interface{}) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, v)
}

func NoContent(w http.ResponseWriter, r *http.Request) {
	render.NoContent(w, r)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	ErrorText string `json:"error"`
	Code      string `json:"code"`
}

func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

var taxonomy = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrQuotaExceeded, http.StatusForbidden, "quota_exceeded"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrAlreadyUsed, http.StatusConflict, "already_used"},
	{domain.ErrExpired, http.StatusGone, "expired"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrNoCompanySelected, http.StatusConflict, "no_company_selected"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// ErrFromDomain builds the response for err. Errors outside the taxonomy are
// reported as 500 without leaking their text.
func ErrFromDomain(err error) *ErrorResponse {
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return &ErrorResponse{Err: err, HTTPStatusCode: t.status, ErrorText: err.Error(), Code: t.code}
		}
	}
	return ErrInternal(err)
}

func ErrUnauthorized(err error) *ErrorResponse {
	return &ErrorResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		ErrorText:      "Unauthorized",
		Code:           "unauthenticated",
	}
}

func ErrTooManyRequests() *ErrorResponse {
	return &ErrorResponse{
		HTTPStatusCode: http.StatusTooManyRequests,
		ErrorText:      "Rate limit exceeded",
		Code:           "rate_limited",
	}
}

func ErrInternal(err error) *ErrorResponse {
	return &ErrorResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		ErrorText:      "Internal server error",
		Code:           "internal",
	}
}

// Error renders err through the taxonomy and logs server errors.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	Render(w, r, ErrFromDomain(err))
}

func Render(w http.ResponseWriter, r *http.Request, e *ErrorResponse) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		log.Error().
			Err(e.Err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	_ = render.Render(w, r, e)
}
