package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/linkstash/internal/auth"
	"github.com/sakif/linkstash/internal/service"
)

const (
	stateCookie   = "oauth_state"
	sessionCookie = "token"
	sessionMaxAge = 24 * time.Hour
)

// AuthHandler manages the GitHub OAuth flow, the session cookie, and API
// token minting.
type AuthHandler struct {
	github *auth.GitHubProvider
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(github *auth.GitHubProvider, svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		github: github,
		svc:    svc,
		logger: logger,
	}
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
// The random state lands in a short-lived cookie and is checked on callback.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow: verify state, exchange the
// code, upsert the user, set the session cookie.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state check failed")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// State is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie. The JWT stays valid until expiry,
// but without the cookie the browser can't present it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleMintAPIToken issues a fresh API token for extension/CLI clients.
// The plaintext is shown only in this response; minting again replaces it.
//
// HTTP: POST /api/token
func (h *AuthHandler) HandleMintAPIToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	token, err := h.svc.MintAPIToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}
