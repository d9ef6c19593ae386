package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Catalogue partagé par les tests du moteur
const testCatalogYAML = `
version: 1
events:
  - type: meal_logged
    metrics:
      - name: meals_logged
        kind: counter
      - name: calories_tracked
        kind: counter
        payload_field: calories
      - name: meals_today
        kind: daily
    streaks: [daily_logging]
  - type: workout_completed
    metrics:
      - name: workouts_completed
        kind: counter
streaks:
  - category: daily_logging
    grace_period: 6h
    warning_before: 4h
    recovery_window: 48h
    recovery_cost: 100
    freeze_tokens: 2
    daily_bonus_xp: 10
    base_multiplier: 0.1
    max_multiplier: 3.0
    milestones:
      - days: 3
        reward: { xp: 150, coins: 50 }
definitions:
  - id: meal_logger
    title: Meal Logger
    kind: achievement
    category: nutrition
    rarity: common
    condition: { metric: meals_logged, comparator: gte, value: 10 }
    reward: { xp: 100, coins: 50 }
  - id: steady_logger
    title: Steady Logger
    kind: achievement
    category: daily_logging
    rarity: common
    condition: { metric: streak_daily_logging, comparator: gte, value: 3 }
    reward: { xp: 200 }
  - id: grinder
    title: Grinder
    kind: quest
    category: fitness
    rarity: common
    condition: { metric: workouts_completed, comparator: gte, value: 5 }
    reward: { xp: 50, coins: 10 }
    repeatable: true
  - id: daily_three
    title: Daily Three
    kind: quest
    category: nutrition
    rarity: common
    condition: { metric: meals_today, comparator: gte, value: 3, window: day }
    reward: { xp: 30, coins: 5 }
    repeatable: true
    cooldown: 20h
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	return cat
}

func testUser(t *testing.T, at time.Time) *model.UserState {
	t.Helper()
	return model.NewUserState("user-1", at)
}

func day(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}
