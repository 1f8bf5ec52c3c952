package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/auth"
	"github.com/dmforge/encounter-engine/pkg/models"
	"github.com/dmforge/encounter-engine/pkg/services"
)

// CreateUserRequest is the request body for creating a directory record.
type CreateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// UpdateUserRequest is the request body for patching a directory
// record. Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// UsersHandler handles user directory HTTP requests.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/users",
		authMiddleware.RequireAdmin(h.FindAll))
	mux.HandleFunc("POST /api/users",
		authMiddleware.RequireAdmin(h.Create))
	mux.HandleFunc("GET /api/users/{username}",
		authMiddleware.RequireSelfOrAdmin("username")(h.Get))
	mux.HandleFunc("PUT /api/users/{username}",
		authMiddleware.RequireSelfOrAdmin("username")(h.Update))
	mux.HandleFunc("DELETE /api/users/{username}",
		authMiddleware.RequireSelfOrAdmin("username")(h.Remove))
}

// FindAll handles GET /api/users
func (h *UsersHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.FindAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, users))
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}
	if req.Username == "" {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "missing_username", "Username is required"))
		return
	}

	user, err := h.userService.Create(r.Context(), req.Username, req.Email, req.DisplayName)
	if err != nil {
		h.logger.Debug("Failed to create user",
			zap.String("username", req.Username),
			zap.Error(err))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusCreated, user))
}

// Get handles GET /api/users/{username}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	user, err := h.userService.Get(r.Context(), username)
	if err != nil {
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, user))
}

// Update handles PUT /api/users/{username}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	patch := models.UserPatch{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}

	user, err := h.userService.Update(r.Context(), username, patch)
	if err != nil {
		h.logger.Debug("Failed to update user",
			zap.String("username", username),
			zap.Error(err))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, user))
}

// Remove handles DELETE /api/users/{username}
func (h *UsersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	if err := h.userService.Remove(r.Context(), username); err != nil {
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, map[string]string{"deleted": username}))
}

func (h *UsersHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
