package model

import (
	"time"
)

// Rarity représente le niveau de rareté d'une définition
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Multiplier retourne le multiplicateur de récompense associé à la rareté
func (r Rarity) Multiplier() float64 {
	switch r {
	case RarityCommon:
		return 1.0
	case RarityRare:
		return 1.5
	case RarityEpic:
		return 2.0
	case RarityLegendary:
		return 3.0
	default:
		return 0
	}
}

// Valid indique si la rareté fait partie des paliers connus
func (r Rarity) Valid() bool {
	return r.Multiplier() > 0
}

// Comparator est l'opérateur de comparaison d'une condition de déblocage
type Comparator string

const (
	ComparatorGTE Comparator = "gte"
	ComparatorLTE Comparator = "lte"
	ComparatorEQ  Comparator = "eq"
	ComparatorIN  Comparator = "in"
)

// Valid indique si le comparateur est connu
func (c Comparator) Valid() bool {
	switch c {
	case ComparatorGTE, ComparatorLTE, ComparatorEQ, ComparatorIN:
		return true
	}
	return false
}

// DefinitionKind distingue les achievements des quêtes
type DefinitionKind string

const (
	KindAchievement DefinitionKind = "achievement"
	KindQuest       DefinitionKind = "quest"
)

// Condition est le prédicat déclaratif de déblocage : une métrique,
// un comparateur et un seuil. Jamais de logique par id.
type Condition struct {
	Metric     string     `json:"metric" yaml:"metric"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Value      float64    `json:"value" yaml:"value"`
	Values     []float64  `json:"values,omitempty" yaml:"values,omitempty"` // utilisé par "in"
	Window     string     `json:"window,omitempty" yaml:"window,omitempty"` // "", "day"
}

// Reward décrit la récompense de base d'une définition
type Reward struct {
	XP    int    `json:"xp" yaml:"xp"`
	Coins int    `json:"coins" yaml:"coins"`
	Badge string `json:"badge,omitempty" yaml:"badge,omitempty"`
}

// Definition est une définition d'achievement ou de quête.
// Immuable une fois chargée depuis le catalogue.
type Definition struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Kind        DefinitionKind `json:"kind"`
	Category    string         `json:"category"`
	Rarity      Rarity         `json:"rarity"`
	Condition   Condition      `json:"condition"`
	Reward      Reward         `json:"reward"`
	Repeatable  bool           `json:"repeatable"`
	Cooldown    time.Duration  `json:"cooldown,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
}

// MetricKind distingue les compteurs cumulatifs des agrégats journaliers
type MetricKind string

const (
	MetricCounter MetricKind = "counter"
	MetricDaily   MetricKind = "daily"
)

// MetricUpdate décrit comment un type d'événement alimente une métrique
type MetricUpdate struct {
	Name         string     `json:"name"`
	Kind         MetricKind `json:"kind"`
	PayloadField string     `json:"payloadField,omitempty"` // vide = incrément de 1
}

// EventMapping relie un type d'événement d'activité aux métriques qu'il
// produit et aux catégories de streak auxquelles il qualifie
type EventMapping struct {
	Type             string         `json:"type"`
	Metrics          []MetricUpdate `json:"metrics"`
	StreakCategories []string       `json:"streakCategories,omitempty"`
}

// StreakMilestone associe un palier de jours à sa récompense
type StreakMilestone struct {
	Days   int    `json:"days"`
	Reward Reward `json:"reward"`
}

// StreakDefinition paramètre la continuité d'une catégorie de streak
type StreakDefinition struct {
	Category       string            `json:"category"`
	GracePeriod    time.Duration     `json:"gracePeriod"`
	WarningBefore  time.Duration     `json:"warningBefore"`  // seuil d'alerte avant la deadline
	RecoveryWindow time.Duration     `json:"recoveryWindow"` // fenêtre de récupération après rupture
	RecoveryCost   int               `json:"recoveryCost"`   // coût en coins (protection et récupération)
	FreezeTokens   int               `json:"freezeTokens"`   // jetons de protection initiaux
	DailyBonusXP   int               `json:"dailyBonusXP"`   // montant de base du bonus quotidien
	BaseMultiplier float64           `json:"baseMultiplier"`
	MaxMultiplier  float64           `json:"maxMultiplier"`
	Milestones     []StreakMilestone `json:"milestones"`
}

// StreakMetric retourne le nom de la métrique dérivée exposée par une
// catégorie de streak (utilisable dans les conditions de déblocage)
func StreakMetric(category string) string {
	return "streak_" + category
}
