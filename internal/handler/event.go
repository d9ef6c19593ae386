package handler

import (
	"errors"
	"net/http"

	"github.com/iDorgham/Diet-Game-sub005/internal/engine"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
	"github.com/iDorgham/Diet-Game-sub005/internal/utils"
)

// IngestEvent reçoit un événement d'activité et le passe au moteur.
// Le timestamp de l'événement fait autorité, pas l'heure de réception.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.ActivityEvent
	if err := utils.DecodeJSON(r, &ev); err != nil {
		utils.Error(w, http.StatusBadRequest, "corps de requête invalide: "+err.Error())
		return
	}

	if err := h.Engine.ProcessEvent(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidEvent):
			utils.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, engine.ErrTransactionFailed):
			utils.Error(w, http.StatusServiceUnavailable, err.Error())
		default:
			utils.Error(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	utils.Message(w, "event accepted")
}
