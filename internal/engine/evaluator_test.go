package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

func TestEvaluateThresholdCrossing(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)
	state.Metrics["meals_logged"] = model.Metric{Kind: model.MetricCounter, Value: 10}

	candidates := eval.Evaluate(state, map[string]float64{"meals_logged": 10}, at)
	require.Len(t, candidates, 1)
	assert.Equal(t, "meal_logger", candidates[0].Definition.ID)
	assert.Equal(t, 0, candidates[0].Occurrence)

	// Sous le seuil, rien
	state.Metrics["meals_logged"] = model.Metric{Kind: model.MetricCounter, Value: 9}
	assert.Empty(t, eval.Evaluate(state, map[string]float64{"meals_logged": 9}, at))
}

func TestEvaluateOnlyChangedMetrics(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)
	state.Metrics["meals_logged"] = model.Metric{Kind: model.MetricCounter, Value: 50}

	// La condition est vraie mais la métrique n'a pas bougé : pas de
	// réévaluation
	assert.Empty(t, eval.Evaluate(state, map[string]float64{"workouts_completed": 1}, at))
}

func TestEvaluateIdempotence(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)
	state.Metrics["meals_logged"] = model.Metric{Kind: model.MetricCounter, Value: 12}
	state.Unlocks["meal_logger"] = &model.UnlockRecord{
		UserID: "user-1", DefinitionID: "meal_logger", UnlockedAt: at, RewardApplied: true,
	}

	// Déjà débloqué : jamais réémis, même si la condition reste vraie
	assert.Empty(t, eval.Evaluate(state, map[string]float64{"meals_logged": 12}, at))
}

func TestEvaluateRepeatableScalesThreshold(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)

	state.Metrics["workouts_completed"] = model.Metric{Kind: model.MetricCounter, Value: 5}
	candidates := eval.Evaluate(state, map[string]float64{"workouts_completed": 5}, at)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0, candidates[0].Occurrence)
	state.Unlocks["grinder"] = &model.UnlockRecord{DefinitionID: "grinder", UnlockedAt: at, RewardApplied: true}

	// L'occurrence suivante attend le double du seuil
	state.Metrics["workouts_completed"] = model.Metric{Kind: model.MetricCounter, Value: 8}
	assert.Empty(t, eval.Evaluate(state, map[string]float64{"workouts_completed": 8}, at))

	state.Metrics["workouts_completed"] = model.Metric{Kind: model.MetricCounter, Value: 10}
	candidates = eval.Evaluate(state, map[string]float64{"workouts_completed": 10}, at)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Occurrence)
}

func TestEvaluateCooldownGate(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(1, 12)
	state := testUser(t, at)
	state.Metrics["meals_today"] = model.Metric{Kind: model.MetricDaily, Value: 3, Day: model.DayKey(at)}
	state.Unlocks["daily_three"] = &model.UnlockRecord{DefinitionID: "daily_three", UnlockedAt: at, RewardApplied: true}

	// Cooldown de 20h : rien une heure après le dernier déblocage
	assert.Empty(t, eval.Evaluate(state, map[string]float64{"meals_today": 3}, at.Add(time.Hour)))

	later := day(2, 9) // 21h plus tard
	state.Metrics["meals_today"] = model.Metric{Kind: model.MetricDaily, Value: 3, Day: model.DayKey(later)}
	candidates := eval.Evaluate(state, map[string]float64{"meals_today": 3}, later)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Occurrence)
}

func TestEvaluateWindowedRepeatableKeepsLiteralThreshold(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	state := testUser(t, day(1, 12))

	// Trois occurrences déjà servies les jours précédents : le seuil
	// d'une condition fenêtrée ne monte pas avec l'occurrence, la
	// fenêtre repart de zéro chaque jour
	for occ := 0; occ < 3; occ++ {
		state.Unlocks[model.UnlockKey("daily_three", occ)] = &model.UnlockRecord{
			DefinitionID: "daily_three", Occurrence: occ,
			UnlockedAt: day(occ+1, 9), RewardApplied: true,
		}
	}

	at := day(5, 12)
	state.Metrics["meals_today"] = model.Metric{Kind: model.MetricDaily, Value: 3, Day: model.DayKey(at)}
	candidates := eval.Evaluate(state, map[string]float64{"meals_today": 3}, at)
	require.Len(t, candidates, 1)
	assert.Equal(t, "daily_three", candidates[0].Definition.ID)
	assert.Equal(t, 3, candidates[0].Occurrence)
}

func TestEvaluateDailyMetricOutsideWindowIsZero(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	state := testUser(t, day(1, 12))
	// Fenêtre d'hier : la valeur lue aujourd'hui vaut zéro
	state.Metrics["meals_today"] = model.Metric{Kind: model.MetricDaily, Value: 5, Day: model.DayKey(day(1, 12))}

	assert.Empty(t, eval.Evaluate(state, map[string]float64{"meals_today": 5}, day(2, 12)))
}

func TestEvaluateStreakMetric(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))
	at := day(5, 12)
	state := testUser(t, at)
	state.Streaks["daily_logging"] = &model.StreakState{
		UserID: "user-1", Category: "daily_logging", Status: model.StreakActive, Count: 3,
	}

	candidates := eval.Evaluate(state, map[string]float64{"streak_daily_logging": 3}, at)
	require.Len(t, candidates, 1)
	assert.Equal(t, "steady_logger", candidates[0].Definition.ID)
}
