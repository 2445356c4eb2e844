// Package httpapi is the HTTP session boundary for the credential
// service. It carries the signed token and the opaque refresh token as two
// separate cookies with independent lifetimes, both HttpOnly, Secure, and
// SameSite=Strict, and deletes both on logout regardless of whether the
// revocation found anything to revoke.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/authkit-go/authkit"
)

// Cookie names. The access cookie is also read by the middleware package.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Handler serves the four credential endpoints.
type Handler struct {
	svc        *authkit.Service
	log        *slog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New returns a Handler. Cookie lifetimes mirror the corresponding token
// lifetimes so the browser drops an artifact when it stops being valid.
func New(svc *authkit.Service, log *slog.Logger, accessTTL, refreshTTL time.Duration) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Routes mounts the endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)
	return mux
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	result, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.internalError(w, r, "register", err)
		return
	}
	if !result.Success {
		writeError(w, statusFor(result.Failure), result.Message)
		return
	}

	h.setCredentialCookies(w, result)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registration successful"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}
	if !result.Success {
		writeError(w, statusFor(result.Failure), result.Message)
		return
	}

	h.setCredentialCookies(w, result)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	result, err := h.svc.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.internalError(w, r, "refresh", err)
		return
	}
	if !result.Success {
		writeError(w, statusFor(result.Failure), result.Message)
		return
	}

	h.setCredentialCookies(w, result)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// logout revokes the presented refresh token when one is there and always
// expires both cookies. A stale or missing token never turns logout into
// an error.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookie); err == nil && cookie.Value != "" {
		revoked, err := h.svc.Revoke(r.Context(), cookie.Value)
		if err != nil {
			h.log.ErrorContext(r.Context(), "revoke on logout failed", "error", err)
		} else if !revoked {
			h.log.DebugContext(r.Context(), "logout presented an inactive refresh token")
		}
	}

	h.clearCredentialCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *Handler) setCredentialCookies(w http.ResponseWriter, result *authkit.AuthResult) {
	http.SetCookie(w, h.cookie(AccessCookie, result.Token, h.accessTTL))
	http.SetCookie(w, h.cookie(RefreshCookie, result.RefreshToken, h.refreshTTL))
}

func (h *Handler) clearCredentialCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(AccessCookie, "", -time.Second))
	http.SetCookie(w, h.cookie(RefreshCookie, "", -time.Second))
}

func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.ErrorContext(r.Context(), op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func statusFor(kind authkit.FailureKind) int {
	if kind == authkit.FailureConflict {
		return http.StatusBadRequest
	}
	return http.StatusUnauthorized
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
