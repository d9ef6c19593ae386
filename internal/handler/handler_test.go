package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	"github.com/iDorgham/Diet-Game-sub005/internal/engine"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
	"github.com/iDorgham/Diet-Game-sub005/internal/storage"
)

const handlerCatalogYAML = `
version: 1
events:
  - type: meal_logged
    metrics:
      - name: meals_logged
streaks: []
definitions:
  - id: meal_logger
    title: Meal Logger
    rarity: common
    condition: { metric: meals_logged, comparator: gte, value: 3 }
    reward: { xp: 100, coins: 50 }
`

func testHandler(t *testing.T) (*Handler, *storage.MemoryStore) {
	t.Helper()
	cat, err := catalog.Parse([]byte(handlerCatalogYAML))
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	eng := engine.New(store, cat, engine.Options{EventBufferSize: 64})
	return New(eng, store), store
}

// testRouter monte les routes utilisées par les tests avec les mêmes
// variables de chemin que l'API
func testRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/events", h.IngestEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userId}/progress", h.GetUserProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userId}/ledger", h.GetUserLedger).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userId}/verdict", h.GetVerdict).Methods(http.MethodGet)
	r.HandleFunc("/api/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)
	return r
}

func postEvent(t *testing.T, r http.Handler, ev model.ActivityEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIngestEventAndReadProgress(t *testing.T) {
	h, _ := testHandler(t)
	r := testRouter(h)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := postEvent(t, r, model.ActivityEvent{
			UserID: "u1", Type: "meal_logged", Timestamp: at.Add(time.Duration(i) * time.Hour),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/progress", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Level int `json:"level"`
			XP    int `json:"xp"`
			Coins int `json:"coins"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Level)
	assert.Equal(t, 100, resp.Data.XP)
	assert.Equal(t, 50, resp.Data.Coins)
}

func TestIngestEventRejectsBadRequests(t *testing.T) {
	h, _ := testHandler(t)
	r := testRouter(h)

	// Type inconnu
	rec := postEvent(t, r, model.ActivityEvent{
		UserID: "u1", Type: "teleport", Timestamp: time.Now().UTC(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Corps illisible
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProgressUnknownUser(t *testing.T) {
	h, _ := testHandler(t)
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/users/ghost/progress", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVerdictDefaultsToClean(t *testing.T) {
	h, store := testHandler(t)
	r := testRouter(h)

	seed := model.NewUserState("u1", time.Now().UTC())
	require.NoError(t, store.CommitUserTransaction(context.Background(),
		&storage.UserTransaction{UserID: "u1", State: seed}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/verdict", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data model.Verdict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.VerdictClean, resp.Data.Status)
}

func TestGetLeaderboardEmptyBeforeFirstCompute(t *testing.T) {
	h, _ := testHandler(t)
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []model.LeaderboardEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
}
