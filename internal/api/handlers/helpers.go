package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dom/tenant-portal/internal/api/middleware"
	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (c CookieConfig) set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, name)
	}
	return id, nil
}

// scopeOrError fetches the company scope installed by RequireCompany.
func scopeOrError(w http.ResponseWriter, r *http.Request) (domain.Scope, bool) {
	scope, ok := middleware.GetScope(r.Context())
	if !ok {
		respond.Error(w, r, domain.ErrNoCompanySelected)
	}
	return scope, ok
}

func userOrError(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respond.Render(w, r, respond.ErrUnauthorized(nil))
	}
	return user, ok
}
