package api

import (
	"net/http"

	"github.com/fatih/color"
	"github.com/gorilla/mux"

	"github.com/iDorgham/Diet-Game-sub005/internal/handler"
	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	"github.com/iDorgham/Diet-Game-sub005/internal/middleware"
)

func SetupRouter(h *handler.Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LoggerMiddleware)

	// Root - API documentation
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Events
	api.HandleFunc("/events", h.IngestEvent).Methods(http.MethodPost)

	// Leaderboard
	api.HandleFunc("/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/{category}", h.GetCategoryLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/rank", h.GetUserRank).Methods(http.MethodGet)

	// User progression
	api.HandleFunc("/users/{userId}/progress", h.GetUserProgress).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/ledger", h.GetUserLedger).Methods(http.MethodGet)

	// Streaks
	api.HandleFunc("/users/{userId}/streaks", h.GetUserStreaks).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/streaks/{category}/protect", h.ProtectStreak).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/streaks/{category}/recover", h.RecoverStreak).Methods(http.MethodPost)

	// Anti-cheat
	api.HandleFunc("/users/{userId}/verdict", h.GetVerdict).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/verdict/clear", h.ClearVerdict).Methods(http.MethodPost)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Warning("404 Not Found: %s %s", r.Method, r.URL.Path)
		color.Yellow("[404] %s %s (route non trouvée)", r.Method, r.URL.Path)
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
