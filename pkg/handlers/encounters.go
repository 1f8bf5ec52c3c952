package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/auth"
	"github.com/dmforge/encounter-engine/pkg/models"
	"github.com/dmforge/encounter-engine/pkg/services"
)

// CreateEncounterRequest is the request body for creating an encounter.
// Monsters is optional: absent means no roster step; an explicit empty
// list is an explicit empty roster.
type CreateEncounterRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Monsters    *[]string `json:"monsters,omitempty"`
}

// SetRosterRequest is the request body for replacing a roster.
type SetRosterRequest struct {
	Monsters *[]string `json:"monsters"`
}

// EncountersHandler handles encounter-related HTTP requests.
type EncountersHandler struct {
	encounterService services.EncounterService
	logger           *zap.Logger
}

// NewEncountersHandler creates a new encounters handler.
func NewEncountersHandler(encounterService services.EncounterService, logger *zap.Logger) *EncountersHandler {
	return &EncountersHandler{
		encounterService: encounterService,
		logger:           logger,
	}
}

// RegisterRoutes registers the encounters handler's routes on the given mux.
func (h *EncountersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// User-scoped routes: the gate validates the path username.
	mux.HandleFunc("POST /api/users/{username}/encounters",
		authMiddleware.RequireSelfOrAdmin("username")(h.Create))
	mux.HandleFunc("GET /api/users/{username}/encounters",
		authMiddleware.RequireSelfOrAdmin("username")(h.List))

	// Encounter-scoped routes: the service re-checks resource ownership.
	mux.HandleFunc("GET /api/encounters/{id}",
		authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/encounters/{id}/monsters",
		authMiddleware.RequireAuth(h.SetRoster))
	mux.HandleFunc("DELETE /api/encounters/{id}",
		authMiddleware.RequireAuth(h.Delete))
}

// Create handles POST /api/users/{username}/encounters
func (h *EncountersHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("username")

	var req CreateEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	if req.Name == "" {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "missing_name", "Encounter name is required"))
		return
	}

	// nil slice = monsters field absent, keep the distinction for the
	// service's empty-vs-absent contract.
	var refs []string
	if req.Monsters != nil {
		refs = *req.Monsters
		if refs == nil {
			refs = []string{}
		}
	}

	enc, err := h.encounterService.CreateWithMonsters(r.Context(), owner, req.Name, req.Description, refs)
	if err != nil {
		h.logServiceError("Failed to create encounter", err,
			zap.String("owner", owner))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusCreated, enc))
}

// List handles GET /api/users/{username}/encounters
// Returns a mapping from encounter ID to encounter with roster.
func (h *EncountersHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("username")

	encounters, err := h.encounterService.ListOwned(r.Context(), owner)
	if err != nil {
		h.logServiceError("Failed to list encounters", err,
			zap.String("owner", owner))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, encounters))
}

// Get handles GET /api/encounters/{id}
func (h *EncountersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.encounterRequest(w, r)
	if !ok {
		return
	}

	enc, err := h.encounterService.GetOwned(r.Context(), id, actor)
	if err != nil {
		h.logServiceError("Failed to get encounter", err,
			zap.String("encounter_id", id.String()))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, enc))
}

// SetRoster handles PUT /api/encounters/{id}/monsters
func (h *EncountersHandler) SetRoster(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.encounterRequest(w, r)
	if !ok {
		return
	}

	var req SetRosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}
	if req.Monsters == nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "missing_monsters", "Monsters list is required (use [] to clear the roster)"))
		return
	}

	enc, err := h.encounterService.SetRoster(r.Context(), id, actor, *req.Monsters)
	if err != nil {
		h.logServiceError("Failed to replace roster", err,
			zap.String("encounter_id", id.String()))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, enc))
}

// Delete handles DELETE /api/encounters/{id}
func (h *EncountersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.encounterRequest(w, r)
	if !ok {
		return
	}

	deleted, err := h.encounterService.DeleteOwned(r.Context(), id, actor)
	if err != nil {
		h.logServiceError("Failed to delete encounter", err,
			zap.String("encounter_id", id.String()))
		h.writeError(ServiceErrorResponse(w, err))
		return
	}

	h.writeError(WriteJSON(w, http.StatusOK, map[string]uuid.UUID{"deleted": deleted}))
}

// encounterRequest parses the encounter ID path parameter and pulls the
// actor injected by auth middleware. Writes the error response itself
// when either is missing.
func (h *EncountersHandler) encounterRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, models.Actor, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_encounter_id", "Invalid encounter ID format"))
		return uuid.Nil, models.Actor{}, false
	}

	actor, ok := auth.GetActor(r.Context())
	if !ok {
		h.writeError(ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return uuid.Nil, models.Actor{}, false
	}

	return id, actor, true
}

// logServiceError logs failures that will surface as server errors;
// expected client errors stay at debug level.
func (h *EncountersHandler) logServiceError(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if StatusForError(err) == http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Debug(msg, fields...)
}

func (h *EncountersHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
