package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
)

const (
	stateCookie = "oauth_state"
	roleCookie  = "oauth_role"
)

// AuthHandler serves the three sign-in methods, logout and /api/me.
//
//   - HandleRegister / HandleLogin     → email + password (JSON)
//   - HandleGoogleLogin / Callback     → Google OAuth redirect flow
//   - HandlePhoneStart / Verify        → SMS one-time code (JSON)
//   - HandleLogout                     → clear the JWT cookie
//   - HandleMe                         → the request's session state
//
// Every successful sign-in ends the same way: the JWT goes into the
// HttpOnly "token" cookie and the client is pointed at the role's dashboard.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// authResponse is the body of every successful JSON sign-in.
type authResponse struct {
	User     *model.User `json:"user"`
	Redirect string      `json:"redirect"`
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, status int, res *service.AuthResult) {
	auth.SetTokenCookie(w, res.Token, h.auth.TokenTTL())
	writeJSON(w, status, authResponse{User: res.User, Redirect: res.User.Role.Dashboard()})
}

// HandleRegister creates an email + password account.
//
// HTTP: POST /api/auth/register
// BODY: {"email", "password", "name", "userType": "student"|"tuition_owner"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusCreated, res)
}

// HandleLogin checks an email + password pair.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// HandleGoogleLogin redirects to Google's consent page.
//
// HTTP: GET /auth/google/login?userType=student
//
// The random state goes into a short-lived cookie and is checked on the
// callback (CSRF). The chosen role rides along in a second cookie; it only
// matters when the Google account is new to us.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	url, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		writeError(w, err)
		return
	}

	setShortCookie(w, stateCookie, state)
	if role, err := model.ParseRole(r.URL.Query().Get("userType")); err == nil {
		setShortCookie(w, roleCookie, string(role))
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow and lands on the dashboard.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	// Single use.
	clearCookie(w, stateCookie)

	var role model.Role
	if rc, err := r.Cookie(roleCookie); err == nil {
		role = model.Role(rc.Value)
		clearCookie(w, roleCookie)
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	res, err := h.auth.LoginGoogle(r.Context(), r.URL.Query().Get("code"), role)
	if err != nil {
		h.logger.Warn("google callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login?auth=failed", http.StatusSeeOther)
		return
	}

	auth.SetTokenCookie(w, res.Token, h.auth.TokenTTL())
	http.Redirect(w, r, res.User.Role.Dashboard(), http.StatusSeeOther)
}

// HandlePhoneStart sends a one-time code by SMS.
//
// HTTP: POST /api/auth/phone/start
// BODY: {"phone": "9876543210", "userType": "student"}
func (h *AuthHandler) HandlePhoneStart(w http.ResponseWriter, r *http.Request) {
	var in service.PhoneStartInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	ch, err := h.auth.StartPhone(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// HandlePhoneVerify exchanges a code for a session.
//
// HTTP: POST /api/auth/phone/verify
// BODY: {"challengeId": "...", "code": "123456"}
func (h *AuthHandler) HandlePhoneVerify(w http.ResponseWriter, r *http.Request) {
	var in service.PhoneVerifyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.VerifyPhone(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// The token itself stays valid until it expires; without the cookie the
// browser can no longer send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// HandleMe returns the session state of the request: the signed-in user,
// role and profile, or a LoggedOut state with the restore error.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.SessionFromContext(r.Context()))
}

// HandleAuthDisabled answers every sign-in endpoint when no JWT secret is
// configured.
func HandleAuthDisabled(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperror.Unavailable("authentication is disabled on this server"))
}

func setShortCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}
