package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/service"
)

const oauthStateCookie = "oauth_state"

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	// Secure marks the cookie HTTPS-only and, because the SPA lives on
	// another origin, SameSite=None. Turn it off only for plain-HTTP local
	// development, where browsers refuse SameSite=None without Secure.
	Secure bool
}

// AuthHandler issues and clears session cookies.
//
// Two ways in:
//   - POST /jwt with {"email": ...}: the client names its identity
//   - GitHub OAuth: the identity is the GitHub account's verified email
//
// Both end the same way: a signed token in the HttpOnly "token" cookie.
type AuthHandler struct {
	sessions      *service.SessionService
	github        *auth.GitHubProvider // nil when GitHub login is not configured
	cookie        CookieOptions
	loginRedirect string
	logger        *slog.Logger
}

func NewAuthHandler(
	sessions *service.SessionService,
	github *auth.GitHubProvider,
	cookie CookieOptions,
	loginRedirect string,
	logger *slog.Logger,
) *AuthHandler {
	if loginRedirect == "" {
		loginRedirect = "/"
	}
	return &AuthHandler{
		sessions:      sessions,
		github:        github,
		cookie:        cookie,
		loginRedirect: loginRedirect,
		logger:        logger,
	}
}

// HandleIssue serves POST /jwt.
func (h *AuthHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req service.SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessions.Issue(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.TTL)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleLogout serves POST /logout. The token itself stays valid until it
// expires; logging out only removes it from the browser.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGitHubLogin serves GET /auth/github/login.
//
// The random state value is stored in a short-lived cookie and echoed back
// by GitHub; the callback rejects a mismatch (CSRF protection).
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback serves GET /auth/github/callback.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.loginRedirect+"?auth=denied", http.StatusSeeOther)
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
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	session, err := h.sessions.IssueForGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Warn("auth callback: no session issued", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.TTL)
	http.Redirect(w, r, h.loginRedirect, http.StatusSeeOther)
}

// setSessionCookie writes the "token" cookie. A negative ttl deletes it.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	sameSite := http.SameSiteLaxMode
	if h.cookie.Secure {
		sameSite = http.SameSiteNoneMode
	}

	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite,
	})
}
