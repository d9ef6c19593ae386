package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

func overallBoard(limit int) model.BoardConfig {
	return model.BoardConfig{
		Key:   model.BoardKey{Category: "overall", Scope: "global", Period: "all-time"},
		Limit: limit,
	}
}

func TestScoreOverallFormula(t *testing.T) {
	r := NewRanker()
	now := day(10, 12)
	u := model.UserSnapshot{
		UserID: "u1", XP: 500, Level: 1, Achievements: 2, StreakDays: 3,
		LastActivity: now.Add(-48 * time.Hour),
	}

	// 500 + 1×100 + 2×50 + 3×10 = 730, ni bonus ni pénalité à 48h
	assert.Equal(t, 730, r.Score(overallBoard(0).Key, u, now))

	// Activité dans les 24h : +10%
	u.LastActivity = now.Add(-2 * time.Hour)
	assert.Equal(t, 803, r.Score(overallBoard(0).Key, u, now))

	// Plus de 7 jours d'inactivité : -10%, jamais cumulé avec le bonus
	u.LastActivity = now.Add(-8 * 24 * time.Hour)
	assert.Equal(t, 657, r.Score(overallBoard(0).Key, u, now))
}

func TestScoreCategoryReadsRawMetric(t *testing.T) {
	r := NewRanker()
	now := day(10, 12)
	key := model.BoardKey{Category: "meals_logged", Scope: "global", Period: "all-time"}
	u := model.UserSnapshot{
		UserID:       "u1",
		Metrics:      map[string]float64{"meals_logged": 42},
		LastActivity: now.Add(-48 * time.Hour),
	}
	assert.Equal(t, 42, r.Score(key, u, now))
	assert.Zero(t, r.Score(model.BoardKey{Category: "unknown"}, u, now))
}

func TestRecomputeOrderingAndTieBreak(t *testing.T) {
	r := NewRanker()
	now := day(10, 12)
	idle := now.Add(-48 * time.Hour)

	users := []model.UserSnapshot{
		{UserID: "u-late", XP: 300, JoinDate: day(2, 0), LastActivity: idle},
		{UserID: "u-early", XP: 300, JoinDate: day(1, 0), LastActivity: idle},
		{UserID: "u-top", XP: 900, JoinDate: day(3, 0), LastActivity: idle},
	}

	entries, events := r.Recompute(overallBoard(0), users, nil, now)
	require.Len(t, entries, 3)
	assert.Equal(t, "u-top", entries[0].UserID)
	// Égalité de score : l'inscrit le plus ancien passe devant
	assert.Equal(t, "u-early", entries[1].UserID)
	assert.Equal(t, "u-late", entries[2].UserID)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Zero(t, e.PreviousRank, "premier calcul, pas de rang précédent")
	}
	assert.Empty(t, events, "pas de progression sans calcul précédent")
}

func TestRecomputeRankChangeEvents(t *testing.T) {
	r := NewRanker()
	now := day(10, 12)
	idle := now.Add(-48 * time.Hour)

	previous := []model.LeaderboardEntry{
		{UserID: "u1", Rank: 1},
		{UserID: "u2", Rank: 2},
	}
	users := []model.UserSnapshot{
		{UserID: "u1", XP: 100, JoinDate: day(1, 0), LastActivity: idle},
		{UserID: "u2", XP: 500, JoinDate: day(1, 0), LastActivity: idle},
	}

	entries, events := r.Recompute(overallBoard(0), users, previous, now)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Change)
	assert.Equal(t, -1, entries[1].Change)

	// Seule la progression de u2 déclenche un événement
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboundRankChange, events[0].Kind)
	assert.Equal(t, "u2", events[0].UserID)
	assert.Equal(t, 2, events[0].RankChange.OldRank)
	assert.Equal(t, 1, events[0].RankChange.NewRank)
	assert.Equal(t, "overall:global:all-time", events[0].RankChange.LeaderboardID)
}

func TestRecomputeHonorsLimit(t *testing.T) {
	r := NewRanker()
	now := day(10, 12)
	idle := now.Add(-48 * time.Hour)

	users := make([]model.UserSnapshot, 0, 5)
	for i := 0; i < 5; i++ {
		users = append(users, model.UserSnapshot{
			UserID: string(rune('a' + i)), XP: (i + 1) * 100, JoinDate: day(1, 0), LastActivity: idle,
		})
	}
	entries, _ := r.Recompute(overallBoard(2), users, nil, now)
	require.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].UserID)
}

func TestRankOf(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{UserID: "u1", Rank: 1, Score: 900},
		{UserID: "u2", Rank: 2, Score: 700},
		{UserID: "u3", Rank: 3, Score: 500},
		{UserID: "u4", Rank: 4, Score: 100},
	}

	rank, ok := RankOf(entries, "u1")
	require.True(t, ok)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 4, rank.TotalUsers)
	assert.Equal(t, 25.0, rank.Percentile)

	_, ok = RankOf(entries, "ghost")
	assert.False(t, ok)
}
