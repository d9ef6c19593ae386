package engine

import (
	"fmt"
	"sort"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Tracker maintient les métriques utilisateur dérivées des événements
// d'activité : compteurs cumulatifs et agrégats journaliers. Les fenêtres
// sont bornées par le timestamp de l'événement, jamais par l'horloge du
// serveur, pour que replay et backfill reproduisent les mêmes fenêtres.
type Tracker struct {
	cat *catalog.Catalog
}

// NewTracker crée un tracker adossé au catalogue
func NewTracker(cat *catalog.Catalog) *Tracker {
	return &Tracker{cat: cat}
}

// Apply applique un événement d'activité à l'état utilisateur et
// retourne l'ensemble des métriques modifiées avec leur nouvelle valeur.
// Un événement invalide laisse l'état strictement intact.
func (t *Tracker) Apply(state *model.UserState, ev model.ActivityEvent) (map[string]float64, error) {
	mapping, err := t.validate(ev)
	if err != nil {
		return nil, err
	}

	// Résoudre tous les montants avant de muter quoi que ce soit
	amounts := make([]float64, len(mapping.Metrics))
	for i, mu := range mapping.Metrics {
		amount := 1.0
		if mu.PayloadField != "" {
			v, ok := ev.Payload[mu.PayloadField]
			if !ok {
				return nil, fmt.Errorf("%w: champ %q absent du payload", ErrInvalidEvent, mu.PayloadField)
			}
			if v < 0 {
				return nil, fmt.Errorf("%w: champ %q négatif (%v)", ErrInvalidEvent, mu.PayloadField, v)
			}
			amount = v
		}
		amounts[i] = amount
	}

	changed := make(map[string]float64, len(mapping.Metrics))
	for i, mu := range mapping.Metrics {
		m := state.Metrics[mu.Name]
		m.Kind = mu.Kind
		if mu.Kind == model.MetricDaily {
			day := model.DayKey(ev.Timestamp)
			if m.Day != day {
				// Passage de fenêtre : l'agrégat repart de zéro
				m.Value = 0
				m.Day = day
			}
		}
		m.Value += amounts[i]
		state.Metrics[mu.Name] = m
		changed[mu.Name] = m.Value
	}

	if ev.Timestamp.After(state.UpdatedAt) {
		state.UpdatedAt = ev.Timestamp
	}
	return changed, nil
}

// validate vérifie la forme de l'événement et retourne son mapping
func (t *Tracker) validate(ev model.ActivityEvent) (*model.EventMapping, error) {
	if ev.UserID == "" {
		return nil, fmt.Errorf("%w: userId manquant", ErrInvalidEvent)
	}
	if ev.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp manquant", ErrInvalidEvent)
	}
	mapping := t.cat.EventMapping(ev.Type)
	if mapping == nil {
		return nil, fmt.Errorf("%w: type %q inconnu", ErrInvalidEvent, ev.Type)
	}
	return mapping, nil
}

// SortedMetricNames retourne les noms de métriques d'un delta, triés.
// L'itération sur le delta doit être déterministe d'un passage à l'autre.
func SortedMetricNames(changed map[string]float64) []string {
	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
