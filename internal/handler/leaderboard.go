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

// boardKeyFromRequest reconstruit la clé de classement depuis la requête
func boardKeyFromRequest(r *http.Request, category string) model.BoardKey {
	query := r.URL.Query()
	scope := query.Get("scope")
	if scope == "" {
		scope = "global"
	}
	period := query.Get("period")
	if period == "" {
		period = "all-time"
	}
	return model.BoardKey{Category: category, Scope: scope, Period: period}
}

// GetLeaderboard récupère le classement général
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.serveBoard(w, r, "overall")
}

// GetCategoryLeaderboard récupère le classement d'une catégorie
func (h *Handler) GetCategoryLeaderboard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.serveBoard(w, r, vars["category"])
}

func (h *Handler) serveBoard(w http.ResponseWriter, r *http.Request, category string) {
	key := boardKeyFromRequest(r, category)
	limit := utils.QueryInt(r, "limit", 50)

	entries, err := h.Store.ReadLeaderboardSnapshot(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		utils.Success(w, []model.LeaderboardEntry{})
		return
	}
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, "could not read leaderboard: "+err.Error())
		return
	}

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	utils.Success(w, entries)
}

// GetUserRank récupère le rang d'un utilisateur dans le classement
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]
	key := boardKeyFromRequest(r, r.URL.Query().Get("category"))
	if key.Category == "" {
		key.Category = "overall"
	}

	entries, err := h.Store.ReadLeaderboardSnapshot(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		utils.Error(w, http.StatusNotFound, "leaderboard not computed yet")
		return
	}
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, "could not read leaderboard: "+err.Error())
		return
	}

	rank, ok := engine.RankOf(entries, userID)
	if !ok {
		utils.Error(w, http.StatusNotFound, "user not ranked")
		return
	}
	utils.Success(w, rank)
}
