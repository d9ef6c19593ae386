package model

import (
	"time"
)

// ActivityEvent est un événement d'activité entrant, produit par les
// features de logging (nutrition, fitness, social). Le timestamp de
// l'événement fait autorité pour les fenêtres et les streaks.
type ActivityEvent struct {
	ID        string             `json:"id,omitempty"`
	UserID    string             `json:"userId"`
	Type      string             `json:"eventType"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   map[string]float64 `json:"payload,omitempty"`
}

// OutboundKind est le type d'un événement sortant
type OutboundKind string

const (
	OutboundUnlock          OutboundKind = "unlock"
	OutboundStreakMilestone OutboundKind = "streak_milestone"
	OutboundStreakRisk      OutboundKind = "streak_risk"
	OutboundLevelUp         OutboundKind = "level_up"
	OutboundRankChange      OutboundKind = "rank_change"
	OutboundRewardBlocked   OutboundKind = "reward_blocked"
	OutboundErrorTrace      OutboundKind = "error_trace"
)

// UnlockPayload détaille un déblocage d'achievement ou de quête
type UnlockPayload struct {
	DefinitionID string `json:"definitionId"`
	Occurrence   int    `json:"occurrence,omitempty"`
	XP           int    `json:"xp"`
	Coins        int    `json:"coins"`
	Badge        string `json:"badge,omitempty"`
}

// MilestonePayload détaille un palier de streak atteint
type MilestonePayload struct {
	Category  string `json:"category"`
	Milestone int    `json:"milestone"`
	Count     int    `json:"count"`
	XP        int    `json:"xp"`
	Coins     int    `json:"coins"`
}

// RiskPayload signale un streak en danger au collaborateur de notification
type RiskPayload struct {
	Category string    `json:"category"`
	Count    int       `json:"count"`
	Deadline time.Time `json:"deadline"`
}

// LevelUpPayload détaille un passage de niveau
type LevelUpPayload struct {
	OldLevel int `json:"oldLevel"`
	NewLevel int `json:"newLevel"`
}

// RankChangePayload détaille un changement de rang sur un classement
type RankChangePayload struct {
	LeaderboardID string `json:"leaderboardId"`
	OldRank       int    `json:"oldRank"`
	NewRank       int    `json:"newRank"`
}

// TracePayload trace une erreur ou un blocage pour l'audit. Le moteur
// ne perd jamais un événement sans trace.
type TracePayload struct {
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
	EventID string `json:"eventId,omitempty"`
}

// OutboundEvent est un événement sortant livré aux collaborateurs de
// notification/UI après commit de la transaction. Livraison at-least-once :
// les consommateurs dédupliquent par ID.
type OutboundEvent struct {
	ID         string             `json:"id"`
	Kind       OutboundKind       `json:"kind"`
	UserID     string             `json:"userId"`
	At         time.Time          `json:"at"`
	Unlock     *UnlockPayload     `json:"unlock,omitempty"`
	Milestone  *MilestonePayload  `json:"milestone,omitempty"`
	Risk       *RiskPayload       `json:"risk,omitempty"`
	LevelUp    *LevelUpPayload    `json:"levelUp,omitempty"`
	RankChange *RankChangePayload `json:"rankChange,omitempty"`
	Trace      *TracePayload      `json:"trace,omitempty"`
}
