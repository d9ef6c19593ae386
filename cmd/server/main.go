package main

import (
	"context"
	"net/http"
	"os"

	"github.com/iDorgham/Diet-Game-sub005/internal/api"
	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	"github.com/iDorgham/Diet-Game-sub005/internal/config"
	"github.com/iDorgham/Diet-Game-sub005/internal/engine"
	"github.com/iDorgham/Diet-Game-sub005/internal/handler"
	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	"github.com/iDorgham/Diet-Game-sub005/internal/middleware"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
	"github.com/iDorgham/Diet-Game-sub005/internal/scheduler"
	"github.com/iDorgham/Diet-Game-sub005/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Could not load config: %v", err)
		os.Exit(1)
	}

	// Load reward catalog
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("Could not load catalog %s: %v", cfg.CatalogPath, err)
		os.Exit(1)
	}
	logger.Success("Catalog v%d loaded (%d definitions)", cat.Version(), len(cat.Definitions()))

	// Pick the store: PostgreSQL when configured, in-memory otherwise
	var store storage.Store
	if cfg.DBHost != "" {
		pg, err := storage.ConnectPostgres(cfg)
		if err != nil {
			logger.Error("Database connection failed: %v", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(context.Background()); err != nil {
			logger.Error("Schema migration failed: %v", err)
			os.Exit(1)
		}
		store = pg
	} else {
		logger.Warning("DB_HOST not set, falling back to in-memory store (state is lost on restart)")
		store = storage.NewMemoryStore()
	}

	// Engine
	eng := engine.New(store, cat, engine.Options{
		EventBufferSize:     cfg.EventBufferSize,
		LargeGrantThreshold: cfg.LargeGrantThreshold,
	})

	// Outbound events go to the notification collaborator. Until one is
	// plugged in, they are logged.
	go dispatchEvents(eng.Events())

	// Background jobs
	sched := scheduler.New(eng, cfg.LeaderboardInterval, cfg.AnticheatSweepAt)
	sched.Start()
	defer sched.Stop()

	// Initialize routes
	router := api.SetupRouter(handler.New(eng, store))

	// Wrap router with CORS middleware
	h := middleware.CORSMiddleware(router)

	// Start server
	logger.Success("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, h); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}

func dispatchEvents(events <-chan model.OutboundEvent) {
	for ev := range events {
		logger.Info("event %s: %s (user %s)", ev.ID, ev.Kind, ev.UserID)
	}
}
