package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// DecodeJSON décode le corps d'une requête en refusant les champs inconnus
func DecodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// QueryInt lit un paramètre entier de la query string avec valeur par défaut
func QueryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
