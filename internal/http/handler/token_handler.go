package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/service"
)

// TokenHandler manages the session user's API tokens.
type TokenHandler struct {
	tokens *service.TokenService
}

func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type createTokenRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	tokens, err := h.tokens.ListForUser(userID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(tokens))
	for i := range tokens {
		views = append(views, tokenView(&tokens[i]))
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	var req createTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "token name is required", nil)
		return
	}
	token, err := h.tokens.Create(userID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, service.ErrUnknownScope) {
			response.Error(w, r, http.StatusBadRequest, "UNKNOWN_SCOPE", err.Error(), nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	observability.Audit(r, "control.token.created", "token_id", token.ID, "name", token.Name)
	response.JSON(w, r, http.StatusCreated, tokenView(token))
}

func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	tokenID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid token id", nil)
		return
	}
	token, err := h.tokens.Get(tokenID, userID)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "token not found", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, tokenView(token))
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	tokenID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid token id", nil)
		return
	}
	if err := h.tokens.Delete(tokenID, userID); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "token not found", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	observability.Audit(r, "control.token.deleted", "token_id", tokenID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func tokenView(token *domain.Token) map[string]any {
	return map[string]any{
		"id":         token.ID,
		"name":       token.Name,
		"scopes":     token.ScopeNames(),
		"created_at": token.CreatedAt,
		"expires_at": token.ExpiresAt,
	}
}

// sessionUserID resolves the control session's subject, answering the request
// itself when the session is unusable.
func sessionUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r)
		return uuid.Nil, false
	}
	userID, err := claims.SubjectUserID()
	if err != nil {
		response.Unauthorized(w, r)
		return uuid.Nil, false
	}
	return userID, true
}
