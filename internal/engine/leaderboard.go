package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Pondérations du score global et paramètres d'activité
const (
	levelWeight       = 100
	achievementWeight = 50
	streakDayWeight   = 10
	inactivityDays    = 7
	inactivityPenalty = 0.9 // -10% sans activité depuis 7 jours
	recencyBonus      = 1.1 // +10% avec activité dans les 24h
)

// Ranker recalcule les classements depuis l'état utilisateur commité.
// État dérivé, éventuellement cohérent : le recalcul ne bloque jamais
// les transactions par utilisateur et se reconstruit sans perte.
type Ranker struct{}

// NewRanker crée un ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Recompute reconstruit un classement ordonné. Tri descendant par score ;
// les égalités se départagent par ordre d'inscription (JoinDate puis id),
// jamais par ordre d'insertion, pour garder les rangs stables d'un
// recalcul à l'autre. Les deltas de rang sont calculés une seule fois
// par passage et produisent les événements de progression.
func (r *Ranker) Recompute(board model.BoardConfig, users []model.UserSnapshot, previous []model.LeaderboardEntry, now time.Time) ([]model.LeaderboardEntry, []model.OutboundEvent) {
	prevRanks := make(map[string]int, len(previous))
	for _, e := range previous {
		prevRanks[e.UserID] = e.Rank
	}

	type scored struct {
		snap  model.UserSnapshot
		score int
	}
	rows := make([]scored, 0, len(users))
	for _, u := range users {
		rows = append(rows, scored{snap: u, score: r.Score(board.Key, u, now)})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		if !rows[i].snap.JoinDate.Equal(rows[j].snap.JoinDate) {
			return rows[i].snap.JoinDate.Before(rows[j].snap.JoinDate)
		}
		return rows[i].snap.UserID < rows[j].snap.UserID
	})

	limit := board.Limit
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}

	entries := make([]model.LeaderboardEntry, 0, limit)
	var events []model.OutboundEvent
	for i, row := range rows[:limit] {
		rank := i + 1
		prev := prevRanks[row.snap.UserID]
		entry := model.LeaderboardEntry{
			UserID:       row.snap.UserID,
			UserName:     row.snap.UserName,
			Rank:         rank,
			PreviousRank: prev,
			Score:        row.score,
		}
		if prev > 0 {
			entry.Change = prev - rank
		}
		entries = append(entries, entry)

		// Seules les progressions déclenchent une récompense de rang
		if prev > 0 && rank < prev {
			events = append(events, model.OutboundEvent{
				ID:     uuid.NewString(),
				Kind:   model.OutboundRankChange,
				UserID: row.snap.UserID,
				At:     now,
				RankChange: &model.RankChangePayload{
					LeaderboardID: board.Key.ID(),
					OldRank:       prev,
					NewRank:       rank,
				},
			})
		}
	}
	return entries, events
}

// Score calcule le score pondéré d'un utilisateur pour une catégorie.
// Pénalité d'inactivité et bonus de récence sont mutuellement exclusifs,
// appliqués avant l'unique arrondi.
func (r *Ranker) Score(key model.BoardKey, u model.UserSnapshot, now time.Time) int {
	var raw float64
	if key.Category == "overall" {
		raw = float64(u.XP) +
			float64(u.Level)*levelWeight +
			float64(u.Achievements)*achievementWeight +
			float64(u.StreakDays)*streakDayWeight
	} else {
		raw = u.Metrics[key.Category]
	}

	idle := now.Sub(u.LastActivity)
	if idle > inactivityDays*24*time.Hour {
		raw *= inactivityPenalty
	} else if idle <= 24*time.Hour {
		raw *= recencyBonus
	}
	return int(math.Round(raw))
}

// RankOf extrait la position d'un utilisateur d'un classement calculé
func RankOf(entries []model.LeaderboardEntry, userID string) (model.UserRank, bool) {
	for _, e := range entries {
		if e.UserID == userID {
			return model.UserRank{
				UserID:     userID,
				Rank:       e.Rank,
				Score:      e.Score,
				TotalUsers: len(entries),
				Percentile: math.Round(float64(e.Rank)/float64(len(entries))*1000) / 10,
			}, true
		}
	}
	return model.UserRank{}, false
}
