package utils

import (
	"encoding/json"
	"net/http"

	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// Success répond 200 avec les données
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// Error répond avec le statut et le message d'erreur
func Error(w http.ResponseWriter, status int, err string) {
	logger.Error("[%d] %s", status, err)
	JSON(w, status, APIResponse{Success: false, Error: err})
}

// Message répond 200 avec un message simple
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, APIResponse{Success: true, Message: msg})
}
