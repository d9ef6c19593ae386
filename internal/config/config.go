package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config regroupe la configuration du service, lue depuis
// l'environnement (avec chargement optionnel d'un fichier .env)
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	CatalogPath string

	LeaderboardInterval time.Duration
	AnticheatSweepAt    string // heure UTC "HH:MM" du balayage quotidien
	EventBufferSize     int
	LargeGrantThreshold int
}

// LoadConfig charge la configuration. Un fichier .env local est chargé
// s'il existe, sans erreur s'il est absent.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBHost:              os.Getenv("DB_HOST"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              getEnv("DB_NAME", "dietgame"),
		CatalogPath:         getEnv("CATALOG_PATH", "catalog.yaml"),
		AnticheatSweepAt:    getEnv("ANTICHEAT_SWEEP_AT", "03:00"),
		EventBufferSize:     getEnvInt("EVENT_BUFFER_SIZE", 1024),
		LargeGrantThreshold: getEnvInt("LARGE_GRANT_THRESHOLD", 500),
	}

	interval, err := time.ParseDuration(getEnv("LEADERBOARD_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("LEADERBOARD_INTERVAL invalide: %w", err)
	}
	cfg.LeaderboardInterval = interval

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
