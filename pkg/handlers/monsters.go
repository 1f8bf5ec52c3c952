package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/auth"
	"github.com/dmforge/encounter-engine/pkg/repositories"
)

// MonstersHandler exposes the monster reference data, read-only.
type MonstersHandler struct {
	monsterRepo repositories.MonsterRepository
	logger      *zap.Logger
}

// NewMonstersHandler creates a new monsters handler.
func NewMonstersHandler(monsterRepo repositories.MonsterRepository, logger *zap.Logger) *MonstersHandler {
	return &MonstersHandler{
		monsterRepo: monsterRepo,
		logger:      logger,
	}
}

// RegisterRoutes registers the monsters handler's routes on the given mux.
func (h *MonstersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/monsters", authMiddleware.RequireAuth(h.FindAll))
}

// FindAll handles GET /api/monsters
func (h *MonstersHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	monsters, err := h.monsterRepo.FindAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list monsters", zap.Error(err))
		if err := ServiceErrorResponse(w, err); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, monsters); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
