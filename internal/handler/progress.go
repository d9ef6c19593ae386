package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iDorgham/Diet-Game-sub005/internal/engine"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
	"github.com/iDorgham/Diet-Game-sub005/internal/storage"
	"github.com/iDorgham/Diet-Game-sub005/internal/utils"
)

// GetUserProgress retourne les métriques, le niveau et les déblocages
// d'un utilisateur
func (h *Handler) GetUserProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	state, err := h.Store.ReadUserState(r.Context(), vars["userId"])
	if errors.Is(err, storage.ErrUnknownUser) {
		utils.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	unlocks := make([]*model.UnlockRecord, 0, len(state.Unlocks))
	for _, rec := range state.Unlocks {
		unlocks = append(unlocks, rec)
	}

	utils.Success(w, map[string]interface{}{
		"userId":  state.UserID,
		"level":   state.Level(),
		"xp":      state.XP,
		"coins":   state.Coins,
		"metrics": state.Metrics,
		"unlocks": unlocks,
	})
}

// GetUserStreaks retourne les streaks d'un utilisateur
func (h *Handler) GetUserStreaks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	state, err := h.Store.ReadUserState(r.Context(), vars["userId"])
	if errors.Is(err, storage.ErrUnknownUser) {
		utils.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(w, state.Streaks)
}

// ProtectStreak pose une protection sur un streak (consomme un jeton
// et des coins)
func (h *Handler) ProtectStreak(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.Engine.UseProtection(r.Context(), vars["userId"], vars["category"])
	if err != nil {
		h.streakActionError(w, err)
		return
	}
	utils.Message(w, "protection applied")
}

// RecoverStreak récupère un streak rompu pendant la fenêtre de
// récupération
func (h *Handler) RecoverStreak(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.Engine.RecoverStreak(r.Context(), vars["userId"], vars["category"])
	if err != nil {
		h.streakActionError(w, err)
		return
	}
	utils.Message(w, "streak recovered")
}

func (h *Handler) streakActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrUnknownUser):
		utils.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, engine.ErrInsufficientCoins),
		errors.Is(err, engine.ErrStreakTransition):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidEvent):
		utils.Error(w, http.StatusBadRequest, err.Error())
	default:
		utils.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// GetUserLedger retourne les dernières écritures au ledger
func (h *Handler) GetUserLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := utils.QueryInt(r, "limit", 50)

	entries, err := h.Store.LedgerEntries(r.Context(), vars["userId"], limit)
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(w, entries)
}

// GetVerdict retourne le verdict anti-triche courant
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	state, err := h.Store.ReadUserState(r.Context(), vars["userId"])
	if errors.Is(err, storage.ErrUnknownUser) {
		utils.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state.Verdict == nil {
		utils.Success(w, model.Verdict{UserID: state.UserID, Status: model.VerdictClean})
		return
	}
	utils.Success(w, state.Verdict)
}

// ClearVerdict lève un verdict après revue manuelle
func (h *Handler) ClearVerdict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.Engine.ClearVerdict(r.Context(), vars["userId"]); err != nil {
		if errors.Is(err, storage.ErrUnknownUser) {
			utils.Error(w, http.StatusNotFound, "user not found")
			return
		}
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Message(w, "verdict cleared")
}
