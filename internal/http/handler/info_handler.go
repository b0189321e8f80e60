package handler

import (
	"net/http"

	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/version"
)

// InfoHandler serves the unauthenticated service identity and the
// token-scoped caller identity.
type InfoHandler struct{}

func NewInfoHandler() *InfoHandler { return &InfoHandler{} }

func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{
		"appname": "freon",
		"version": version.Version,
	})
}

// Me answers with the owner of the presented token.
func (h *InfoHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"username": token.User.Username,
		"token": map[string]any{
			"id":     token.ID,
			"name":   token.Name,
			"scopes": token.ScopeNames(),
		},
	})
}
