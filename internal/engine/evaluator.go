package engine

import (
	"time"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Evaluator détermine quelles conditions de déblocage deviennent vraies
// après une mise à jour de métriques. L'évaluation est une fonction pure
// sur des conditions déclaratives (métrique, comparateur, seuil) :
// aucune branche par id de définition.
type Evaluator struct {
	cat *catalog.Catalog
}

// NewEvaluator crée un évaluateur adossé au catalogue
func NewEvaluator(cat *catalog.Catalog) *Evaluator {
	return &Evaluator{cat: cat}
}

// UnlockCandidate est un déblocage éligible émis vers le distributeur
type UnlockCandidate struct {
	Definition *model.Definition
	Occurrence int
	At         time.Time
}

// Evaluate retourne les candidats au déblocage pour les métriques
// modifiées par l'événement courant. Seules les définitions dont la
// condition référence une métrique modifiée sont réévaluées. Idempotent :
// un déblocage déjà récompensé n'est jamais réémis.
func (e *Evaluator) Evaluate(state *model.UserState, changed map[string]float64, at time.Time) []UnlockCandidate {
	var candidates []UnlockCandidate
	seen := make(map[string]bool)

	// Itération triée : l'ordre des candidats doit être identique d'un
	// passage à l'autre sur le même état.
	for _, metric := range SortedMetricNames(changed) {
		for _, def := range e.cat.DefinitionsForMetric(metric) {
			if seen[def.ID] {
				continue
			}
			seen[def.ID] = true

			if def.ExpiresAt != nil && at.After(*def.ExpiresAt) {
				continue
			}

			occurrence, eligible := e.nextOccurrence(state, def, at)
			if !eligible {
				continue
			}
			if !e.conditionHolds(state, def, occurrence, at) {
				continue
			}
			candidates = append(candidates, UnlockCandidate{
				Definition: def,
				Occurrence: occurrence,
				At:         at,
			})
		}
	}
	return candidates
}

// nextOccurrence retourne l'occurrence à débloquer et l'éligibilité.
// Une définition non répétable déjà débloquée n'est plus éligible ;
// une définition répétable attend la fin du cooldown de l'occurrence
// précédente.
func (e *Evaluator) nextOccurrence(state *model.UserState, def *model.Definition, at time.Time) (int, bool) {
	last := -1
	var lastAt time.Time
	for occ := 0; ; occ++ {
		rec, ok := state.Unlocks[model.UnlockKey(def.ID, occ)]
		if !ok {
			break
		}
		last = occ
		lastAt = rec.UnlockedAt
	}
	if last < 0 {
		return 0, true
	}
	if !def.Repeatable {
		return 0, false
	}
	if def.Cooldown > 0 && at.Before(lastAt.Add(def.Cooldown)) {
		return 0, false
	}
	return last + 1, true
}

// conditionHolds évalue la condition déclarative d'une définition
// contre l'état courant
func (e *Evaluator) conditionHolds(state *model.UserState, def *model.Definition, occurrence int, at time.Time) bool {
	value := metricValue(state, def.Condition.Metric, at)
	threshold := def.Condition.Value

	// Pour une définition répétable à seuil croissant sur un compteur
	// cumulatif, le seuil effectif avance avec l'occurrence : "10 repas"
	// répétable signifie 10, 20, 30... Une condition fenêtrée repart de
	// zéro à chaque fenêtre : son seuil reste littéral, seul le cooldown
	// régule la répétition.
	if def.Repeatable && def.Condition.Comparator == model.ComparatorGTE && def.Condition.Window == "" {
		threshold = def.Condition.Value * float64(occurrence+1)
	}

	switch def.Condition.Comparator {
	case model.ComparatorGTE:
		return value >= threshold
	case model.ComparatorLTE:
		return value <= threshold
	case model.ComparatorEQ:
		return value == threshold
	case model.ComparatorIN:
		for _, v := range def.Condition.Values {
			if value == v {
				return true
			}
		}
	}
	return false
}

// metricValue lit la valeur d'une métrique à l'instant donné. Un agrégat
// journalier dont la fenêtre ne couvre pas cet instant vaut zéro ; une
// métrique de streak lit le compteur courant de la catégorie.
func metricValue(state *model.UserState, name string, at time.Time) float64 {
	for cat, s := range state.Streaks {
		if name == model.StreakMetric(cat) {
			return float64(s.Count)
		}
	}
	m, ok := state.Metrics[name]
	if !ok {
		return 0
	}
	if m.Kind == model.MetricDaily && m.Day != model.DayKey(at) {
		return 0
	}
	return m.Value
}
