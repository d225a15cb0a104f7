package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/service"
)

// AuthHandler manages registration, login and session cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and log it in
//   - HandleLogin    → check name + password, issue a JWT
//   - HandleLogout   → revoke the JWT and clear the cookie
//   - HandleMe       → return the logged-in user's profile
//
// The token is returned both in the JSON body (for API clients that send a
// Bearer header) and as an HttpOnly cookie (for the browser).
type AuthHandler struct {
	auth   *service.AuthService
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. ttl is the cookie lifetime and
// should match the token lifetime.
func NewAuthHandler(authService *service.AuthService, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, ttl: ttl, logger: logger}
}

// registerRequest is the JSON body for POST /auth/register.
type registerRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleRegister creates a new (non-admin) user and logs them in.
//
// HTTP: POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Password, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result)
}

// HandleLogin checks credentials and issues a token.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result)
}

// HandleLogout revokes the presented token and clears the cookie.
//
// HTTP: POST /auth/logout
// Auth: Required
//
// Revoking matters for Bearer clients: deleting the cookie alone would leave
// the token usable until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		h.auth.Logout(id)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile, including
// their allergies and meal plan. The password hash is never part of it.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn("HandleMe: user lookup failed", slog.Int64("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the JWT in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read it. SameSite=Lax = not sent on
// cross-site POSTs. Secure should be set when served over HTTPS.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
