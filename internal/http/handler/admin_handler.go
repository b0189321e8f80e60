package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/service"
)

// AdminHandler is the superuser-only account management surface.
type AdminHandler struct {
	users *service.UserService
}

func NewAdminHandler(users *service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(users))
	for i := range users {
		views = append(views, userView(&users[i]))
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "username is required", nil)
		return
	}
	user, err := h.users.Create(req.Username, req.Password, req.IsSuperuser)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			response.Error(w, r, http.StatusConflict, "CONFLICT", "username already taken", nil)
		case errors.Is(err, service.ErrEmptyPassword):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			writeInternalError(w, r, err)
		}
		return
	}
	observability.Audit(r, "control.user.created", "username", user.Username, "is_superuser", user.IsSuperuser)
	response.JSON(w, r, http.StatusCreated, userView(user))
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	user, err := h.users.Get(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, userView(user))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	if err := h.users.Delete(userID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		case errors.Is(err, service.ErrLastSuperuser):
			response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
		default:
			writeInternalError(w, r, err)
		}
		return
	}
	observability.Audit(r, "control.user.deleted", "user_id", userID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func userView(user *domain.User) map[string]any {
	return map[string]any{
		"id":           user.ID,
		"username":     user.Username,
		"is_superuser": user.IsSuperuser,
		"created_at":   user.CreatedAt,
	}
}
