package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/security"
	"github.com/casimir/freon/internal/service"
)

// ControlHandler serves the web control surface session: login, logout and
// the session's own identity.
type ControlHandler struct {
	users  *service.UserService
	jwtMgr *security.JWTManager
	secure bool
}

func NewControlHandler(users *service.UserService, jwtMgr *security.JWTManager, secureCookies bool) *ControlHandler {
	return &ControlHandler{users: users, jwtMgr: jwtMgr, secure: secureCookies}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *ControlHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.users.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadLogin) {
			observability.Audit(r, "control.login.rejected", "username", req.Username)
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "bad login", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	raw, err := h.jwtMgr.SignSessionToken(user.ID, user.Username, user.IsSuperuser)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(h.jwtMgr.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	observability.Audit(r, "control.login", "username", user.Username)
	response.JSON(w, r, http.StatusOK, sessionView(user.Username, user.IsSuperuser))
}

func (h *ControlHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *ControlHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, sessionView(claims.Username, claims.IsSuperuser))
}

func sessionView(username string, superuser bool) map[string]any {
	return map[string]any{
		"username":     username,
		"is_superuser": superuser,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return false
	}
	return true
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "control request failed", "path", r.URL.Path, "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
