package model

import (
	"fmt"
	"time"
)

// XPPerLevel est le coût en XP d'un niveau
const XPPerLevel = 1000

// DayKey retourne la clé de fenêtre journalière (UTC) d'un instant.
// Les fenêtres sont calculées sur le timestamp de l'événement, jamais
// sur l'horloge du serveur, pour supporter le replay.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Metric est la valeur courante d'une métrique utilisateur
type Metric struct {
	Kind  MetricKind `json:"kind"`
	Value float64    `json:"value"`
	Day   string     `json:"day,omitempty"` // clé de fenêtre pour les agrégats journaliers
}

// StreakStatus est l'état de continuité d'un streak
type StreakStatus string

const (
	StreakActive    StreakStatus = "active"
	StreakAtRisk    StreakStatus = "at_risk"
	StreakProtected StreakStatus = "protected"
	StreakBroken    StreakStatus = "broken"
	StreakRecovered StreakStatus = "recovered"
)

// StreakState est l'état d'un streak pour un utilisateur et une catégorie
type StreakState struct {
	UserID            string       `json:"userId"`
	Category          string       `json:"category"`
	Status            StreakStatus `json:"status"`
	Count             int          `json:"count"`
	Longest           int          `json:"longest"`
	LastActivity      time.Time    `json:"lastActivity"`
	LastCountedDay    string       `json:"lastCountedDay,omitempty"` // jour UTC du dernier incrément
	ProtectedUntil    *time.Time   `json:"protectedUntil,omitempty"`
	FreezeTokens      int          `json:"freezeTokens"`
	BrokenAt          *time.Time   `json:"brokenAt,omitempty"`
	PreBreakCount     int          `json:"preBreakCount,omitempty"`
	MilestonesReached map[int]bool `json:"milestonesReached,omitempty"`
}

// UnlockRecord trace un déblocage et l'application de sa récompense.
// La paire (récompense appliquée, écriture au ledger) est validée dans
// la même transaction : c'est la garantie exactly-once du moteur.
type UnlockRecord struct {
	UserID         string    `json:"userId"`
	DefinitionID   string    `json:"definitionId"`
	Occurrence     int       `json:"occurrence"`
	UnlockedAt     time.Time `json:"unlockedAt"`
	RewardApplied  bool      `json:"rewardApplied"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// UnlockKey retourne la clé d'un UnlockRecord dans l'état utilisateur
func UnlockKey(definitionID string, occurrence int) string {
	if occurrence == 0 {
		return definitionID
	}
	return fmt.Sprintf("%s#%d", definitionID, occurrence)
}

// Currency identifie la monnaie d'une écriture au ledger
type Currency string

const (
	CurrencyXP    Currency = "xp"
	CurrencyCoins Currency = "coins"
)

// LedgerEntry est une écriture comptable, en append-only. Le solde est
// toujours dérivable comme la somme des écritures.
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Currency     Currency  `json:"currency"`
	Amount       int       `json:"amount"` // signé
	Source       string    `json:"source"` // unlock:<id>, streak:<cat>:<n>, spend:<motif>, manual
	BalanceAfter int       `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Severity est la gravité d'une violation anti-triche
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// rank donne l'ordre total des gravités
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// AtLeast indique si s est au moins aussi grave que other
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// VerdictStatus est le statut anti-triche d'un utilisateur
type VerdictStatus string

const (
	VerdictClean     VerdictStatus = "clean"
	VerdictFlagged   VerdictStatus = "flagged"
	VerdictSuspended VerdictStatus = "suspended"
	VerdictBanned    VerdictStatus = "banned"
)

// rank donne l'ordre total des statuts
func (v VerdictStatus) rank() int {
	switch v {
	case VerdictFlagged:
		return 1
	case VerdictSuspended:
		return 2
	case VerdictBanned:
		return 3
	}
	return 0
}

// AtLeast indique si v est au moins aussi sévère que other
func (v VerdictStatus) AtLeast(other VerdictStatus) bool {
	return v.rank() >= other.rank()
}

// Blocking indique si le statut bloque les distributions de récompense
func (v VerdictStatus) Blocking() bool {
	return v == VerdictSuspended || v == VerdictBanned
}

// Violation est une règle anti-triche déclenchée
type Violation struct {
	Rule       string    `json:"rule"`
	Severity   Severity  `json:"severity"`
	Confidence float64   `json:"confidence"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Verdict est le résultat courant de la validation anti-triche.
// Un statut suspended/banned est collant : seule une revue manuelle le lève.
type Verdict struct {
	UserID     string        `json:"userId"`
	Status     VerdictStatus `json:"status"`
	Violations []Violation   `json:"violations,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// UserState est la racine d'agrégat par utilisateur : métriques, streaks,
// déblocages et soldes. Toutes les écritures pour un utilisateur sont
// sérialisées ; l'état n'est jamais partagé entre composants.
type UserState struct {
	UserID    string                  `json:"userId"`
	Name      string                  `json:"name,omitempty"`
	JoinDate  time.Time               `json:"joinDate"`
	XP        int                     `json:"xp"`
	Coins     int                     `json:"coins"`
	Metrics   map[string]Metric       `json:"metrics"`
	Streaks   map[string]*StreakState `json:"streaks"`
	Unlocks   map[string]*UnlockRecord `json:"unlocks"`
	Verdict   *Verdict                `json:"verdict,omitempty"`
	Version   int64                   `json:"version"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// NewUserState initialise l'état d'un utilisateur à sa première activité
func NewUserState(userID string, at time.Time) *UserState {
	return &UserState{
		UserID:   userID,
		JoinDate: at,
		Metrics:  make(map[string]Metric),
		Streaks:  make(map[string]*StreakState),
		Unlocks:  make(map[string]*UnlockRecord),
	}
}

// Level dérive le niveau courant du cumul d'XP
func (u *UserState) Level() int {
	return 1 + u.XP/XPPerLevel
}

// VerdictStatus retourne le statut anti-triche courant (clean par défaut)
func (u *UserState) VerdictStatus() VerdictStatus {
	if u.Verdict == nil {
		return VerdictClean
	}
	return u.Verdict.Status
}

// AchievementCount compte les déblocages dont la récompense est appliquée
func (u *UserState) AchievementCount() int {
	n := 0
	for _, rec := range u.Unlocks {
		if rec.RewardApplied {
			n++
		}
	}
	return n
}

// Clone retourne une copie profonde de l'état
func (u *UserState) Clone() *UserState {
	c := *u
	c.Metrics = make(map[string]Metric, len(u.Metrics))
	for k, v := range u.Metrics {
		c.Metrics[k] = v
	}
	c.Streaks = make(map[string]*StreakState, len(u.Streaks))
	for k, v := range u.Streaks {
		s := *v
		if v.ProtectedUntil != nil {
			t := *v.ProtectedUntil
			s.ProtectedUntil = &t
		}
		if v.BrokenAt != nil {
			t := *v.BrokenAt
			s.BrokenAt = &t
		}
		s.MilestonesReached = make(map[int]bool, len(v.MilestonesReached))
		for m, ok := range v.MilestonesReached {
			s.MilestonesReached[m] = ok
		}
		c.Streaks[k] = &s
	}
	c.Unlocks = make(map[string]*UnlockRecord, len(u.Unlocks))
	for k, v := range u.Unlocks {
		r := *v
		c.Unlocks[k] = &r
	}
	if u.Verdict != nil {
		v := *u.Verdict
		v.Violations = append([]Violation(nil), u.Verdict.Violations...)
		c.Verdict = &v
	}
	return &c
}
