package model

import (
	"time"
)

// BoardKey identifie un classement : catégorie, portée, période
type BoardKey struct {
	Category string `json:"category"` // overall, nutrition, fitness, ...
	Scope    string `json:"scope"`    // global, friends
	Period   string `json:"period"`   // daily, weekly, monthly, all-time
}

// ID retourne l'identifiant stable du classement
func (k BoardKey) ID() string {
	return k.Category + ":" + k.Scope + ":" + k.Period
}

// BoardConfig paramètre un classement maintenu par le ranker
type BoardConfig struct {
	Key             BoardKey      `json:"key"`
	UpdateFrequency time.Duration `json:"updateFrequency"`
	Limit           int           `json:"limit"`
}

// LeaderboardEntry est une ligne de classement. État dérivé, jamais
// source de vérité : reconstructible depuis l'état utilisateur.
type LeaderboardEntry struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName,omitempty"`
	Rank         int    `json:"rank"`
	PreviousRank int    `json:"previousRank,omitempty"`
	Score        int    `json:"score"`
	Change       int    `json:"change"` // previousRank - rank, positif = progression
}

// UserRank est la position d'un utilisateur dans un classement
type UserRank struct {
	UserID     string  `json:"userId"`
	Rank       int     `json:"rank"`
	Score      int     `json:"score"`
	TotalUsers int     `json:"totalUsers"`
	Percentile float64 `json:"percentile"` // top X%
}

// UserSnapshot est la vue en lecture d'un utilisateur consommée par le
// ranker et le balayage anti-triche. Construite depuis l'état commité.
type UserSnapshot struct {
	UserID       string             `json:"userId"`
	UserName     string             `json:"userName,omitempty"`
	JoinDate     time.Time          `json:"joinDate"`
	XP           int                `json:"xp"`
	Level        int                `json:"level"`
	Coins        int                `json:"coins"`
	Achievements int                `json:"achievements"`
	StreakDays   int                `json:"streakDays"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	LastActivity time.Time          `json:"lastActivity"`
}

// SnapshotOf construit la vue en lecture d'un état utilisateur
func SnapshotOf(u *UserState) UserSnapshot {
	snap := UserSnapshot{
		UserID:       u.UserID,
		UserName:     u.Name,
		JoinDate:     u.JoinDate,
		XP:           u.XP,
		Level:        u.Level(),
		Coins:        u.Coins,
		Achievements: u.AchievementCount(),
		LastActivity: u.UpdatedAt,
		Metrics:      make(map[string]float64, len(u.Metrics)),
	}
	for name, m := range u.Metrics {
		snap.Metrics[name] = m.Value
	}
	for _, s := range u.Streaks {
		if s.Count > snap.StreakDays {
			snap.StreakDays = s.Count
		}
		snap.Metrics[StreakMetric(s.Category)] = float64(s.Count)
	}
	return snap
}
