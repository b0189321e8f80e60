package handler

import (
	"errors"
	"net/http"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/service"
)

// CredentialsHandler manages the session user's wallabag connection settings.
type CredentialsHandler struct {
	creds *service.CredentialsService
}

func NewCredentialsHandler(creds *service.CredentialsService) *CredentialsHandler {
	return &CredentialsHandler{creds: creds}
}

type saveCredentialsRequest struct {
	ServerURL    string `json:"server_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

func (h *CredentialsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	creds, err := h.creds.Get(userID)
	if err != nil {
		if errors.Is(err, service.ErrCredentialsNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no wallabag credentials configured", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, credentialsView(creds))
}

func (h *CredentialsHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	var req saveCredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	creds, err := h.creds.Save(userID, req.ServerURL, req.ClientID, req.ClientSecret, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidServerURL) {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	observability.Audit(r, "control.credentials.saved", "server_url", creds.ServerURL)
	response.JSON(w, r, http.StatusOK, credentialsView(creds))
}

func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	if err := h.creds.Delete(userID); err != nil {
		if errors.Is(err, service.ErrCredentialsNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no wallabag credentials configured", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	observability.Audit(r, "control.credentials.deleted")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// credentialsView never exposes the client secret or the account password.
func credentialsView(creds *domain.WallabagCredentials) map[string]any {
	return map[string]any{
		"server_url":        creds.ServerURL,
		"client_id":         creds.ClientID,
		"username":          creds.Username,
		"has_valid_session": creds.SessionID != nil,
		"updated_at":        creds.UpdatedAt,
	}
}
