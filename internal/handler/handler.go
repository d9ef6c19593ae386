package handler

import (
	"net/http"

	"github.com/iDorgham/Diet-Game-sub005/internal/engine"
	"github.com/iDorgham/Diet-Game-sub005/internal/storage"
	"github.com/iDorgham/Diet-Game-sub005/internal/utils"
)

// Handler regroupe les dépendances des endpoints HTTP : le moteur pour
// les écritures, le store pour les lectures
type Handler struct {
	Engine *engine.Engine
	Store  storage.Store
}

// New crée le handler
func New(eng *engine.Engine, store storage.Store) *Handler {
	return &Handler{Engine: eng, Store: store}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.Message(w, "ok")
}
