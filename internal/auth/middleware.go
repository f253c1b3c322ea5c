package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/session"
)

// CookieName is the HttpOnly cookie that carries the JWT.
const CookieName = "token"

// contextKey is unexported so no other package can read or shadow values
// stored by this one.
type contextKey string

const (
	userIDKey  contextKey = "userID"
	sessionKey contextKey = "session"
)

// SessionLoader rebuilds the session for a user ID taken from a valid token.
// It must never return nil: a failed lookup yields a LoggedOut state with Err
// set (see session.State.Fail).
type SessionLoader interface {
	Session(ctx context.Context, userID string) *session.State
}

// LoadSession runs on every request. It validates the "token" cookie and puts
// both the user ID and the rebuilt session state in the request context.
// Requests without a valid cookie carry a fresh LoggedOut state.
//
// This is the cookie-based version of "restore the session on app load":
// every request sees the same state a freshly loaded page would.
func LoadSession(tokens *TokenService, loader SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := session.New()
			ctx := r.Context()

			if userID, err := extractUserID(r, tokens); err == nil {
				state = loader.Session(ctx, userID)
				if state.Authenticated {
					ctx = context.WithValue(ctx, userIDKey, userID)
				}
			}

			ctx = context.WithValue(ctx, sessionKey, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the request's session. Outside LoadSession it
// returns a LoggedOut state, never nil.
func SessionFromContext(ctx context.Context) *session.State {
	if s, ok := ctx.Value(sessionKey).(*session.State); ok && s != nil {
		return s
	}
	return session.New()
}

// WithSession stores state in ctx. Handler tests use it to skip the cookie.
func WithSession(ctx context.Context, state *session.State) context.Context {
	if state.Authenticated && state.User != nil {
		ctx = context.WithValue(ctx, userIDKey, state.User.UID)
	}
	return context.WithValue(ctx, sessionKey, state)
}

// UserIDFromContext returns the signed-in user's ID, or ("", false) for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequireAuth rejects API requests without a signed-in session (401).
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).Authenticated {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is RequireAuth plus a role check (403 on mismatch).
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if !s.Authenticated {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if s.Role != role {
				writeAuthError(w, http.StatusForbidden, "forbidden", "this action requires the "+string(role)+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GuardPage protects a page route. Anonymous visitors are sent to /login,
// and a user of the other role is sent to their own dashboard. An empty role
// only requires a signed-in user.
//
// PAGES VS API:
// Page guards answer 303 redirects. API routes use RequireAuth/RequireRole,
// which answer 401/403 with the JSON error body. The two never mix: a route
// under /api is never wrapped in GuardPage.
//
//	request              anonymous     student              tuition owner
//	/student-dashboard   → /login      200                  → /tuition-dashboard
//	/create-post         → /login      → /student-dashboard 200
func GuardPage(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if !s.Authenticated {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if role != "" && s.Role != role {
				http.Redirect(w, r, s.Role.Dashboard(), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectIfAuthenticated keeps signed-in users off the login page.
func RedirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := SessionFromContext(r.Context()); s.Authenticated {
			http.Redirect(w, r, s.Home(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetTokenCookie stores a freshly issued JWT.
// Secure is left off so the cookie works on plain-HTTP localhost.
func SetTokenCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the JWT.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}

// writeAuthError writes the same {"error","message"} shape the handlers use.
func writeAuthError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + kind + `","message":"` + msg + `"}`))
}
