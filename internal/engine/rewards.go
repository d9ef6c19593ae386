package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Bornes documentées du pipeline de multiplicateurs. Chaque facteur est
// borné avant application ; l'ordre est fixe partout :
// base × rareté × (1 + niveau×facteur) × streak, arrondi une seule fois.
const (
	DefaultLevelFactor  = 0.05
	MaxLevelBound       = 2.0 // borne du facteur (1 + niveau×levelFactor)
	StreakFactorPerDay  = 0.02
	MaxStreakMultiplier = 2.0
)

// Distributor convertit les candidats au déblocage en écritures au
// ledger, exactement une fois par UnlockRecord. La paire (écriture,
// flag récompense appliquée) est posée sur le même état et commitée
// dans la même transaction.
type Distributor struct {
	LevelFactor float64
}

// NewDistributor crée un distributeur avec le facteur de niveau par défaut
func NewDistributor() *Distributor {
	return &Distributor{LevelFactor: DefaultLevelFactor}
}

// GrantResult décrit l'effet d'une distribution
type GrantResult struct {
	NoOp    bool
	Entries []*model.LedgerEntry
	Record  *model.UnlockRecord
	Events  []model.OutboundEvent
}

// GrantUnlock distribue la récompense d'un candidat au déblocage.
// Un verdict banned/suspended rejette la distribution (ErrRewardBlocked,
// loggée, jamais silencieuse). Un déblocage déjà récompensé est un
// no-op, jamais une erreur.
func (d *Distributor) GrantUnlock(state *model.UserState, cand UnlockCandidate, at time.Time) (*GrantResult, error) {
	def := cand.Definition
	key := model.UnlockKey(def.ID, cand.Occurrence)

	if rec, ok := state.Unlocks[key]; ok && rec.RewardApplied {
		// Garde défensive d'idempotence
		return &GrantResult{NoOp: true}, nil
	}

	if state.VerdictStatus().Blocking() {
		logger.Warning("distribution bloquée pour %s (%s): verdict %s", state.UserID, def.ID, state.VerdictStatus())
		return nil, fmt.Errorf("%w: verdict %s", ErrRewardBlocked, state.VerdictStatus())
	}

	streakMult := d.streakMultiplier(state, def.Category)
	xp := d.amount(def.Reward.XP, def.Rarity, state.Level(), streakMult)
	coins := d.amount(def.Reward.Coins, def.Rarity, state.Level(), streakMult)

	record := &model.UnlockRecord{
		UserID:         state.UserID,
		DefinitionID:   def.ID,
		Occurrence:     cand.Occurrence,
		UnlockedAt:     at,
		RewardApplied:  true,
		IdempotencyKey: uuid.NewString(),
	}
	state.Unlocks[key] = record

	res := &GrantResult{Record: record}
	source := "unlock:" + key
	d.credit(state, res, model.CurrencyXP, xp, source, at)
	d.credit(state, res, model.CurrencyCoins, coins, source, at)

	res.Events = append(res.Events, model.OutboundEvent{
		ID:     uuid.NewString(),
		Kind:   model.OutboundUnlock,
		UserID: state.UserID,
		At:     at,
		Unlock: &model.UnlockPayload{
			DefinitionID: def.ID,
			Occurrence:   cand.Occurrence,
			XP:           xp,
			Coins:        coins,
			Badge:        def.Reward.Badge,
		},
	})
	return res, nil
}

// GrantStreakMilestone distribue la récompense d'un jalon de streak
func (d *Distributor) GrantStreakMilestone(state *model.UserState, def *model.StreakDefinition, milestone int, at time.Time) (*GrantResult, error) {
	if state.VerdictStatus().Blocking() {
		logger.Warning("jalon bloqué pour %s (%s@%d): verdict %s", state.UserID, def.Category, milestone, state.VerdictStatus())
		return nil, fmt.Errorf("%w: verdict %s", ErrRewardBlocked, state.VerdictStatus())
	}

	var reward model.Reward
	for _, m := range def.Milestones {
		if m.Days == milestone {
			reward = m.Reward
			break
		}
	}

	res := &GrantResult{}
	source := fmt.Sprintf("streak:%s:%d", def.Category, milestone)
	d.credit(state, res, model.CurrencyXP, reward.XP, source, at)
	d.credit(state, res, model.CurrencyCoins, reward.Coins, source, at)

	count := 0
	if s := state.Streaks[def.Category]; s != nil {
		count = s.Count
	}
	res.Events = append(res.Events, model.OutboundEvent{
		ID:     uuid.NewString(),
		Kind:   model.OutboundStreakMilestone,
		UserID: state.UserID,
		At:     at,
		Milestone: &model.MilestonePayload{
			Category:  def.Category,
			Milestone: milestone,
			Count:     count,
			XP:        reward.XP,
			Coins:     reward.Coins,
		},
	})
	return res, nil
}

// GrantDailyBonus crédite le bonus quotidien d'un streak
func (d *Distributor) GrantDailyBonus(state *model.UserState, category string, bonusXP int, at time.Time) (*GrantResult, error) {
	if bonusXP <= 0 {
		return &GrantResult{NoOp: true}, nil
	}
	if state.VerdictStatus().Blocking() {
		return nil, fmt.Errorf("%w: verdict %s", ErrRewardBlocked, state.VerdictStatus())
	}
	res := &GrantResult{}
	d.credit(state, res, model.CurrencyXP, bonusXP, "streak:"+category+":daily", at)
	return res, nil
}

// Spend débite des coins (protection ou récupération de streak)
func (d *Distributor) Spend(state *model.UserState, amount int, source string, at time.Time) (*GrantResult, error) {
	if amount <= 0 {
		return &GrantResult{NoOp: true}, nil
	}
	if state.Coins < amount {
		return nil, fmt.Errorf("%w: %d coins requis, solde %d", ErrInsufficientCoins, amount, state.Coins)
	}
	res := &GrantResult{}
	d.credit(state, res, model.CurrencyCoins, -amount, source, at)
	return res, nil
}

// credit applique un montant signé au solde et trace l'écriture.
// Détecte un éventuel passage de niveau sur les crédits d'XP.
func (d *Distributor) credit(state *model.UserState, res *GrantResult, currency model.Currency, amount int, source string, at time.Time) {
	if amount == 0 {
		return
	}
	oldLevel := state.Level()
	var balance int
	switch currency {
	case model.CurrencyXP:
		state.XP += amount
		balance = state.XP
	case model.CurrencyCoins:
		state.Coins += amount
		balance = state.Coins
	}
	res.Entries = append(res.Entries, &model.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       state.UserID,
		Currency:     currency,
		Amount:       amount,
		Source:       source,
		BalanceAfter: balance,
		CreatedAt:    at,
	})
	if newLevel := state.Level(); newLevel > oldLevel {
		res.Events = append(res.Events, model.OutboundEvent{
			ID:      uuid.NewString(),
			Kind:    model.OutboundLevelUp,
			UserID:  state.UserID,
			At:      at,
			LevelUp: &model.LevelUpPayload{OldLevel: oldLevel, NewLevel: newLevel},
		})
	}
}

// amount déroule le pipeline de multiplicateurs dans l'ordre fixe,
// chaque facteur borné, l'arrondi appliqué une seule fois à la fin
func (d *Distributor) amount(base int, rarity model.Rarity, level int, streakMult float64) int {
	if base <= 0 {
		return 0
	}
	levelMult := 1 + float64(level-1)*d.LevelFactor
	if levelMult > MaxLevelBound {
		levelMult = MaxLevelBound
	}
	return int(math.Floor(float64(base) * rarity.Multiplier() * levelMult * streakMult))
}

// streakMultiplier dérive le facteur streak de la catégorie de la
// définition : 1 + count×facteur, borné
func (d *Distributor) streakMultiplier(state *model.UserState, category string) float64 {
	s := state.Streaks[category]
	if s == nil || s.Count == 0 {
		return 1.0
	}
	mult := 1 + float64(s.Count)*StreakFactorPerDay
	if mult > MaxStreakMultiplier {
		mult = MaxStreakMultiplier
	}
	return mult
}
