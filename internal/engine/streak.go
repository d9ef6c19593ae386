package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// StreakManager fait vivre les streaks : continuité quotidienne, période
// de grâce, jetons de protection, rupture et récupération. La protection
// étend la deadline, elle ne gèle pas l'horloge.
type StreakManager struct {
	cat *catalog.Catalog
}

// NewStreakManager crée un gestionnaire adossé au catalogue
func NewStreakManager(cat *catalog.Catalog) *StreakManager {
	return &StreakManager{cat: cat}
}

// StreakResult décrit l'effet d'une activité qualifiante sur un streak
type StreakResult struct {
	State        *model.StreakState
	Counted      bool  // le compteur a été incrémenté (une fois par jour calendaire)
	Milestones   []int // jalons atteints par cet incrément
	DailyBonusXP int   // bonus quotidien dû pour cet incrément
	Broke        bool  // une rupture a été constatée pendant l'évaluation
}

// RiskSignal décrit un streak passé en danger, à destination du
// collaborateur de notification
type RiskSignal struct {
	Category string
	Count    int
	Deadline time.Time
}

// RecordActivity enregistre une activité qualifiante dans une catégorie.
// Le compteur s'incrémente au plus une fois par jour calendaire (UTC du
// timestamp de l'événement), et les jalons sont vérifiés à l'incrément.
func (m *StreakManager) RecordActivity(state *model.UserState, category string, at time.Time) (*StreakResult, error) {
	def := m.cat.StreakDefinition(category)
	if def == nil {
		return nil, fmt.Errorf("%w: catégorie de streak %q inconnue", ErrInvalidEvent, category)
	}

	s := state.Streaks[category]
	if s == nil {
		s = &model.StreakState{
			UserID:            state.UserID,
			Category:          category,
			Status:            model.StreakActive,
			FreezeTokens:      def.FreezeTokens,
			MilestonesReached: make(map[int]bool),
		}
		state.Streaks[category] = s
	}

	res := &StreakResult{State: s}

	// Constater une éventuelle rupture avant de compter
	if m.applyTimeout(def, s, at) {
		res.Broke = true
	}

	if s.Status == model.StreakBroken {
		if at.After(s.BrokenAt.Add(def.RecoveryWindow)) {
			// Fenêtre de récupération expirée : nouvelle instance de streak
			s.Status = model.StreakActive
			s.Count = 0
			s.PreBreakCount = 0
			s.BrokenAt = nil
			s.MilestonesReached = make(map[int]bool)
			s.LastCountedDay = ""
		} else {
			// Rupture encore récupérable : l'activité est tracée mais le
			// compteur ne repart qu'après récupération ou expiration
			s.LastActivity = at
			return res, nil
		}
	}

	day := model.DayKey(at)
	if s.LastCountedDay != day {
		s.Count++
		s.LastCountedDay = day
		res.Counted = true
		if s.Count > s.Longest {
			s.Longest = s.Count
		}
		for _, milestone := range def.Milestones {
			if milestone.Days == s.Count && !s.MilestonesReached[milestone.Days] {
				s.MilestonesReached[milestone.Days] = true
				res.Milestones = append(res.Milestones, milestone.Days)
			}
		}
		res.DailyBonusXP = DailyBonus(def, s.Count)
	}

	s.Status = model.StreakActive
	s.LastActivity = at
	s.ProtectedUntil = nil
	return res, nil
}

// CheckRisk évalue les transitions temporelles (at_risk, broken) d'une
// catégorie sans activité. Retourne un signal de risque sur la
// transition active → at_risk, nil sinon.
func (m *StreakManager) CheckRisk(state *model.UserState, category string, now time.Time) *RiskSignal {
	def := m.cat.StreakDefinition(category)
	s := state.Streaks[category]
	if def == nil || s == nil || s.Count == 0 {
		return nil
	}

	if m.applyTimeout(def, s, now) {
		return nil
	}

	deadline := m.deadline(def, s)
	warnAt := s.LastActivity.Add(24*time.Hour - def.WarningBefore)
	if (s.Status == model.StreakActive || s.Status == model.StreakRecovered) && now.After(warnAt) {
		s.Status = model.StreakAtRisk
		return &RiskSignal{Category: category, Count: s.Count, Deadline: deadline}
	}
	return nil
}

// applyTimeout constate une rupture si la deadline (protection comprise)
// est dépassée. Le compteur retombe à zéro, la valeur pré-rupture est
// conservée pour la fenêtre de récupération.
func (m *StreakManager) applyTimeout(def *model.StreakDefinition, s *model.StreakState, now time.Time) bool {
	if s.Status == model.StreakBroken || s.Count == 0 {
		return false
	}
	if now.After(m.deadline(def, s)) {
		broken := now
		s.Status = model.StreakBroken
		s.BrokenAt = &broken
		s.PreBreakCount = s.Count
		s.Count = 0
		s.ProtectedUntil = nil
		return true
	}
	return false
}

// deadline retourne l'échéance courante : 24h + grâce après la dernière
// activité, ou l'échéance étendue si une protection est posée
func (m *StreakManager) deadline(def *model.StreakDefinition, s *model.StreakState) time.Time {
	d := s.LastActivity.Add(24*time.Hour + def.GracePeriod)
	if s.ProtectedUntil != nil && s.ProtectedUntil.After(d) {
		d = *s.ProtectedUntil
	}
	return d
}

// UseProtection consomme un jeton de protection : étend la deadline de
// la période de grâce sans incrémenter le compteur. Le coût en coins est
// retourné pour écriture au ledger par l'appelant.
func (m *StreakManager) UseProtection(state *model.UserState, category string, at time.Time) (int, error) {
	def := m.cat.StreakDefinition(category)
	if def == nil {
		return 0, fmt.Errorf("%w: catégorie de streak %q inconnue", ErrInvalidEvent, category)
	}
	s := state.Streaks[category]
	if s == nil || s.Count == 0 {
		return 0, fmt.Errorf("%w: aucun streak à protéger", ErrStreakTransition)
	}
	if m.applyTimeout(def, s, at) || s.Status == model.StreakBroken {
		return 0, fmt.Errorf("%w: streak déjà rompu", ErrStreakTransition)
	}
	if s.FreezeTokens <= 0 {
		return 0, fmt.Errorf("%w: aucun jeton de protection", ErrStreakTransition)
	}
	if state.Coins < def.RecoveryCost {
		return 0, fmt.Errorf("%w: protection à %d coins", ErrInsufficientCoins, def.RecoveryCost)
	}

	s.FreezeTokens--
	extended := m.deadline(def, s).Add(def.GracePeriod)
	s.ProtectedUntil = &extended
	s.Status = model.StreakProtected
	return def.RecoveryCost, nil
}

// Recover exécute l'action de récupération explicite pendant la fenêtre
// de récupération : le compteur reprend sa valeur pré-rupture. C'est une
// fenêtre de pardon, pas un nouveau streak.
func (m *StreakManager) Recover(state *model.UserState, category string, at time.Time) (int, error) {
	def := m.cat.StreakDefinition(category)
	if def == nil {
		return 0, fmt.Errorf("%w: catégorie de streak %q inconnue", ErrInvalidEvent, category)
	}
	s := state.Streaks[category]
	if s == nil || s.Status != model.StreakBroken {
		return 0, fmt.Errorf("%w: pas de rupture à récupérer", ErrStreakTransition)
	}
	if at.After(s.BrokenAt.Add(def.RecoveryWindow)) {
		return 0, fmt.Errorf("%w: fenêtre de récupération expirée", ErrStreakTransition)
	}
	if state.Coins < def.RecoveryCost {
		return 0, fmt.Errorf("%w: récupération à %d coins", ErrInsufficientCoins, def.RecoveryCost)
	}

	s.Count = s.PreBreakCount
	s.PreBreakCount = 0
	s.BrokenAt = nil
	s.Status = model.StreakRecovered
	s.LastActivity = at
	return def.RecoveryCost, nil
}

// DailyBonus calcule le bonus quotidien d'un streak :
// min(maxMultiplier, baseMultiplier × count) × baseAmount, tronqué
func DailyBonus(def *model.StreakDefinition, count int) int {
	if def.DailyBonusXP <= 0 || count <= 0 {
		return 0
	}
	mult := def.BaseMultiplier * float64(count)
	if mult > def.MaxMultiplier {
		mult = def.MaxMultiplier
	}
	return int(math.Floor(mult * float64(def.DailyBonusXP)))
}
