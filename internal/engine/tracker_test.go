package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

func TestTrackerApplyCountersAndPayload(t *testing.T) {
	tracker := NewTracker(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)

	changed, err := tracker.Apply(state, model.ActivityEvent{
		UserID:    "user-1",
		Type:      "meal_logged",
		Timestamp: at,
		Payload:   map[string]float64{"calories": 350},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, changed["meals_logged"])
	assert.Equal(t, 350.0, changed["calories_tracked"])
	assert.Equal(t, 1.0, changed["meals_today"])
	assert.Equal(t, at, state.UpdatedAt)
}

func TestTrackerDailyWindowResets(t *testing.T) {
	tracker := NewTracker(testCatalog(t))
	state := testUser(t, day(1, 9))

	payload := map[string]float64{"calories": 200}
	ev := model.ActivityEvent{UserID: "user-1", Type: "meal_logged", Payload: payload}

	ev.Timestamp = day(1, 9)
	_, err := tracker.Apply(state, ev)
	require.NoError(t, err)
	ev.Timestamp = day(1, 19)
	changed, err := tracker.Apply(state, ev)
	require.NoError(t, err)
	assert.Equal(t, 2.0, changed["meals_today"], "même fenêtre, l'agrégat s'accumule")

	// Le lendemain la fenêtre journalière repart de zéro, le compteur
	// cumulatif continue
	ev.Timestamp = day(2, 8)
	changed, err = tracker.Apply(state, ev)
	require.NoError(t, err)
	assert.Equal(t, 1.0, changed["meals_today"])
	assert.Equal(t, 3.0, changed["meals_logged"])
}

func TestTrackerRejectsInvalidEvents(t *testing.T) {
	tracker := NewTracker(testCatalog(t))
	at := day(1, 12)

	cases := []struct {
		name string
		ev   model.ActivityEvent
	}{
		{"missing user", model.ActivityEvent{Type: "meal_logged", Timestamp: at}},
		{"missing timestamp", model.ActivityEvent{UserID: "user-1", Type: "meal_logged"}},
		{"unknown type", model.ActivityEvent{UserID: "user-1", Type: "teleport", Timestamp: at}},
		{"missing payload field", model.ActivityEvent{UserID: "user-1", Type: "meal_logged", Timestamp: at}},
		{"negative payload", model.ActivityEvent{UserID: "user-1", Type: "meal_logged", Timestamp: at,
			Payload: map[string]float64{"calories": -10}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := testUser(t, at)
			_, err := tracker.Apply(state, tc.ev)
			require.ErrorIs(t, err, ErrInvalidEvent)
			// Un événement invalide laisse l'état strictement intact
			assert.Empty(t, state.Metrics)
			assert.True(t, state.UpdatedAt.IsZero())
		})
	}
}

func TestSortedMetricNames(t *testing.T) {
	names := SortedMetricNames(map[string]float64{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
