package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

func TestStreakCountsOncePerDay(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))

	res, err := m.RecordActivity(state, "daily_logging", day(1, 12))
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 1, res.State.Count)
	assert.Equal(t, 1, res.DailyBonusXP) // floor(0.1 × 1 × 10)

	// Deuxième activité le même jour : tracée mais pas comptée
	res, err = m.RecordActivity(state, "daily_logging", day(1, 18))
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.Equal(t, 1, res.State.Count)
	assert.Zero(t, res.DailyBonusXP)

	res, err = m.RecordActivity(state, "daily_logging", day(2, 9))
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 2, res.State.Count)
	assert.Equal(t, 2, res.State.Longest)
}

func TestStreakMilestoneOnce(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))

	for d := 1; d <= 2; d++ {
		_, err := m.RecordActivity(state, "daily_logging", day(d, 12))
		require.NoError(t, err)
	}
	res, err := m.RecordActivity(state, "daily_logging", day(3, 12))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Milestones)
	assert.True(t, res.State.MilestonesReached[3])
}

func TestStreakBreakAndRecovery(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))
	state.Coins = 150

	for d := 1; d <= 3; d++ {
		_, err := m.RecordActivity(state, "daily_logging", day(d, 12))
		require.NoError(t, err)
	}

	// Deadline = jour 3 12h + 24h + 6h de grâce = jour 4 18h. Le jour 6,
	// la rupture est constatée.
	res, err := m.RecordActivity(state, "daily_logging", day(6, 12))
	require.NoError(t, err)
	assert.True(t, res.Broke)
	assert.False(t, res.Counted)
	assert.Equal(t, model.StreakBroken, res.State.Status)
	assert.Zero(t, res.State.Count)
	assert.Equal(t, 3, res.State.PreBreakCount)

	// Récupération explicite dans la fenêtre : le compteur reprend sa
	// valeur pré-rupture
	cost, err := m.Recover(state, "daily_logging", day(6, 13))
	require.NoError(t, err)
	assert.Equal(t, 100, cost)
	assert.Equal(t, model.StreakRecovered, state.Streaks["daily_logging"].Status)
	assert.Equal(t, 3, state.Streaks["daily_logging"].Count)
	assert.Zero(t, state.Streaks["daily_logging"].PreBreakCount)
}

func TestStreakRecoveryWindowExpires(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))
	state.Coins = 500

	_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
	require.NoError(t, err)

	res, err := m.RecordActivity(state, "daily_logging", day(4, 12))
	require.NoError(t, err)
	assert.True(t, res.Broke)

	// Fenêtre de 48h dépassée : plus de récupération possible
	_, err = m.Recover(state, "daily_logging", day(7, 12))
	require.ErrorIs(t, err, ErrStreakTransition)

	// La prochaine activité démarre une nouvelle instance, jalons remis
	// à zéro
	res, err = m.RecordActivity(state, "daily_logging", day(7, 12))
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 1, res.State.Count)
	assert.Empty(t, res.State.MilestonesReached)
}

func TestStreakRecoverWithoutBreak(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))
	state.Coins = 500

	_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
	require.NoError(t, err)
	_, err = m.Recover(state, "daily_logging", day(1, 13))
	require.ErrorIs(t, err, ErrStreakTransition)
}

func TestStreakProtectionExtendsDeadline(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))
	state.Coins = 150

	_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
	require.NoError(t, err)

	cost, err := m.UseProtection(state, "daily_logging", day(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 100, cost)

	s := state.Streaks["daily_logging"]
	assert.Equal(t, model.StreakProtected, s.Status)
	assert.Equal(t, 1, s.FreezeTokens)
	// Deadline 24h+6h étendue d'une période de grâce supplémentaire
	require.NotNil(t, s.ProtectedUntil)
	assert.Equal(t, day(1, 12).Add(36*time.Hour), *s.ProtectedUntil)

	// L'activité dans l'extension continue le streak au lieu de le rompre
	res, err := m.RecordActivity(state, "daily_logging", day(2, 23))
	require.NoError(t, err)
	assert.False(t, res.Broke)
	assert.True(t, res.Counted)
	assert.Equal(t, 2, res.State.Count)
	assert.Nil(t, res.State.ProtectedUntil)
}

func TestStreakProtectionRequirements(t *testing.T) {
	m := NewStreakManager(testCatalog(t))

	t.Run("no streak", func(t *testing.T) {
		state := testUser(t, day(1, 12))
		_, err := m.UseProtection(state, "daily_logging", day(1, 12))
		require.ErrorIs(t, err, ErrStreakTransition)
	})

	t.Run("insufficient coins", func(t *testing.T) {
		state := testUser(t, day(1, 12))
		state.Coins = 10
		_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
		require.NoError(t, err)
		_, err = m.UseProtection(state, "daily_logging", day(1, 13))
		require.ErrorIs(t, err, ErrInsufficientCoins)
	})

	t.Run("no tokens left", func(t *testing.T) {
		state := testUser(t, day(1, 12))
		state.Coins = 1000
		_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
		require.NoError(t, err)
		state.Streaks["daily_logging"].FreezeTokens = 0
		_, err = m.UseProtection(state, "daily_logging", day(1, 13))
		require.ErrorIs(t, err, ErrStreakTransition)
	})
}

func TestStreakRiskSignal(t *testing.T) {
	m := NewStreakManager(testCatalog(t))
	state := testUser(t, day(1, 12))

	_, err := m.RecordActivity(state, "daily_logging", day(1, 12))
	require.NoError(t, err)

	// Avant le seuil d'alerte (24h - 4h après la dernière activité) : rien
	assert.Nil(t, m.CheckRisk(state, "daily_logging", day(2, 7)))

	signal := m.CheckRisk(state, "daily_logging", day(2, 9))
	require.NotNil(t, signal)
	assert.Equal(t, "daily_logging", signal.Category)
	assert.Equal(t, 1, signal.Count)
	assert.Equal(t, day(2, 18), signal.Deadline)
	assert.Equal(t, model.StreakAtRisk, state.Streaks["daily_logging"].Status)

	// Pas de second signal pour la même transition
	assert.Nil(t, m.CheckRisk(state, "daily_logging", day(2, 10)))
}

func TestDailyBonusCapped(t *testing.T) {
	cat := testCatalog(t)
	def := cat.StreakDefinition("daily_logging")
	require.NotNil(t, def)

	assert.Equal(t, 1, DailyBonus(def, 1))
	assert.Equal(t, 15, DailyBonus(def, 15))
	// Multiplicateur borné à 3.0
	assert.Equal(t, 30, DailyBonus(def, 50))
	assert.Zero(t, DailyBonus(def, 0))
}
