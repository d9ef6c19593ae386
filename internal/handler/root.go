package handler

import (
	"net/http"

	"github.com/iDorgham/Diet-Game-sub005/internal/utils"
)

// Root affiche toutes les routes disponibles de l'API
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	routes := map[string]interface{}{
		"name":    "Diet Game Engine API",
		"version": "1.0.0",
		"status":  "running",
		"catalog": h.Engine.Catalog().Version(),
		"routes": map[string]interface{}{
			"events": []map[string]string{
				{"method": "POST", "path": "/api/events", "description": "Ingestion d'un événement d'activité"},
			},
			"leaderboard": []map[string]string{
				{"method": "GET", "path": "/api/leaderboard", "description": "Classement général (params: scope, period)"},
				{"method": "GET", "path": "/api/leaderboard/{category}", "description": "Classement par catégorie"},
				{"method": "GET", "path": "/api/users/{userId}/rank", "description": "Rang et percentile d'un utilisateur"},
			},
			"users": []map[string]string{
				{"method": "GET", "path": "/api/users/{userId}/progress", "description": "Métriques, niveau, déblocages"},
				{"method": "GET", "path": "/api/users/{userId}/streaks", "description": "Streaks de l'utilisateur"},
				{"method": "POST", "path": "/api/users/{userId}/streaks/{category}/protect", "description": "Poser une protection de streak"},
				{"method": "POST", "path": "/api/users/{userId}/streaks/{category}/recover", "description": "Récupérer un streak rompu"},
				{"method": "GET", "path": "/api/users/{userId}/ledger", "description": "Dernières écritures au ledger (param: limit)"},
				{"method": "GET", "path": "/api/users/{userId}/verdict", "description": "Verdict anti-triche courant"},
				{"method": "POST", "path": "/api/users/{userId}/verdict/clear", "description": "Lever un verdict (revue manuelle)"},
			},
			"health": []map[string]string{
				{"method": "GET", "path": "/health", "description": "Health check de l'API"},
			},
		},
	}

	utils.Success(w, routes)
}
