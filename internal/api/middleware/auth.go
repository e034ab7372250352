package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/session"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	SessionKey contextKey = "session"
	UserKey    contextKey = "user"
	ScopeKey   contextKey = "scope"
)

var errNotAuthenticated = errors.New("not authenticated")

// Session resolves the session cookie, if any, and stores the session and
// its user in the request context. Requests without a valid session pass
// through anonymously.
func Session(authService *service.AuthService, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, user, err := authService.Resolve(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					log.Error().Err(err).Msg("[middleware.Session] failed to resolve session")
					respond.Error(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			respond.Render(w, r, respond.ErrUnauthorized(errNotAuthenticated))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCompany resolves the company scope of the session against current
// membership. Sessions that have not selected a company get 409, sessions
// whose access was revoked get 403.
func RequireCompany(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			user, userOK := GetUser(r.Context())
			if !ok || !userOK {
				respond.Render(w, r, respond.ErrUnauthorized(errNotAuthenticated))
				return
			}

			scope, err := authService.RequireCompanyScope(r.Context(), sess, user)
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ScopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			respond.Render(w, r, respond.ErrUnauthorized(errNotAuthenticated))
			return
		}
		if !user.IsSuperAdmin {
			respond.Error(w, r, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*session.Session)
	return sess, ok
}

func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

func GetScope(ctx context.Context) (domain.Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(domain.Scope)
	return scope, ok
}
