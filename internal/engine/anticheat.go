package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// Bornes par défaut des règles anti-triche
const (
	DefaultMaxXPPerDay      = 10000
	DefaultMaxLevelsPerDay  = 5.0
	DefaultEventRate        = rate.Limit(1.0) // événements/seconde soutenables
	DefaultEventBurst       = 30
	DefaultAnomalyTolerance = 20
)

// acRule est une règle de validation : indépendante, pass/fail, avec
// gravité et confiance. L'ordre d'exécution est fixe.
type acRule struct {
	name     string
	severity model.Severity
	check    func(v *Validator, state *model.UserState, now time.Time) (bool, float64, string)
}

// Validator exécute l'ensemble ordonné des règles anti-triche et produit
// des verdicts qui conditionnent distributions et classements. Un verdict
// suspended/banned est collant jusqu'à revue manuelle.
type Validator struct {
	MaxXPPerDay      int
	MaxLevelsPerDay  float64
	EventRate        rate.Limit
	EventBurst       int
	AnomalyTolerance int

	rules []acRule

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	anomalies map[string]int
}

// NewValidator crée un validateur avec les bornes par défaut
func NewValidator() *Validator {
	v := &Validator{
		MaxXPPerDay:      DefaultMaxXPPerDay,
		MaxLevelsPerDay:  DefaultMaxLevelsPerDay,
		EventRate:        DefaultEventRate,
		EventBurst:       DefaultEventBurst,
		AnomalyTolerance: DefaultAnomalyTolerance,
		limiters:         make(map[string]*rate.Limiter),
		anomalies:        make(map[string]int),
	}
	v.rules = []acRule{
		{name: "impossible_score", severity: model.SeverityCritical, check: (*Validator).checkImpossibleScore},
		{name: "progression_rate", severity: model.SeverityError, check: (*Validator).checkProgressionRate},
		{name: "activity_pattern", severity: model.SeverityWarning, check: (*Validator).checkActivityPattern},
	}
	return v
}

// ObserveEvent nourrit la détection d'anomalie de cadence. Un débit
// au-delà du seau à jetons compte comme anomalie.
func (v *Validator) ObserveEvent(userID string, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	lim, ok := v.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(v.EventRate, v.EventBurst)
		v.limiters[userID] = lim
	}
	if !lim.AllowN(at, 1) {
		v.anomalies[userID]++
	}
}

// Validate exécute les règles dans l'ordre et pose le verdict sur l'état.
// Le statut global est la gravité maximale parmi les règles déclenchées,
// jamais une moyenne. Annulable : soit le verdict complet est posé, soit
// l'état n'est pas touché.
func (v *Validator) Validate(ctx context.Context, state *model.UserState, now time.Time) (*model.Verdict, error) {
	var violations []model.Violation
	for _, rule := range v.rules {
		if err := ctx.Err(); err != nil {
			// Annulation : aucun verdict à moitié appliqué
			return nil, err
		}
		triggered, confidence, detail := rule.check(v, state, now)
		if triggered {
			violations = append(violations, model.Violation{
				Rule:       rule.name,
				Severity:   rule.severity,
				Confidence: confidence,
				Detail:     detail,
				At:         now,
			})
		}
	}

	// Une règle qui se redéclenche remplace son occurrence précédente :
	// l'historique garde une entrée par règle, jamais de doublons au fil
	// des balayages quotidiens. Les violations passées de règles qui ne
	// se déclenchent plus restent dans l'historique.
	if state.Verdict != nil {
		retriggered := make(map[string]bool, len(violations))
		for _, viol := range violations {
			retriggered[viol.Rule] = true
		}
		merged := make([]model.Violation, 0, len(state.Verdict.Violations)+len(violations))
		for _, prev := range state.Verdict.Violations {
			if !retriggered[prev.Rule] {
				merged = append(merged, prev)
			}
		}
		violations = append(merged, violations...)
	}
	// Statut calculé sur tout l'historique : ajouter une violation ne
	// peut jamais faire baisser la sévérité
	status := statusFor(violations)
	if state.Verdict != nil && state.Verdict.Status.Blocking() && state.Verdict.Status.AtLeast(status) {
		// Collant : un statut bloquant ne redescend jamais tout seul
		status = state.Verdict.Status
	}

	verdict := &model.Verdict{
		UserID:     state.UserID,
		Status:     status,
		Violations: violations,
		UpdatedAt:  now,
	}
	state.Verdict = verdict
	return verdict, nil
}

// ClearVerdict lève un verdict après revue manuelle. Seul chemin de
// retour à clean pour un statut bloquant.
func (v *Validator) ClearVerdict(state *model.UserState, now time.Time) {
	state.Verdict = &model.Verdict{
		UserID:    state.UserID,
		Status:    model.VerdictClean,
		UpdatedAt: now,
	}
	v.mu.Lock()
	delete(v.anomalies, state.UserID)
	v.mu.Unlock()
}

// statusFor mappe la gravité maximale vers un statut :
// critical→banned, error→suspended, warning→flagged, rien→clean
func statusFor(violations []model.Violation) model.VerdictStatus {
	max := model.Severity("")
	for _, viol := range violations {
		if viol.Severity.AtLeast(max) {
			max = viol.Severity
		}
	}
	switch max {
	case model.SeverityCritical:
		return model.VerdictBanned
	case model.SeverityError:
		return model.VerdictSuspended
	case model.SeverityWarning:
		return model.VerdictFlagged
	}
	return model.VerdictClean
}

// checkImpossibleScore borne le cumul d'XP par l'âge du compte
func (v *Validator) checkImpossibleScore(state *model.UserState, now time.Time) (bool, float64, string) {
	days := int(now.Sub(state.JoinDate).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	bound := v.MaxXPPerDay * days
	if state.XP > bound {
		return true, 0.95, fmt.Sprintf("%d XP en %d jours (borne %d)", state.XP, days, bound)
	}
	return false, 0, ""
}

// checkProgressionRate borne la vitesse de montée en niveau
func (v *Validator) checkProgressionRate(state *model.UserState, now time.Time) (bool, float64, string) {
	days := now.Sub(state.JoinDate).Hours() / 24
	if days < 1 {
		days = 1
	}
	perDay := float64(state.Level()-1) / days
	if perDay > v.MaxLevelsPerDay {
		return true, 0.8, fmt.Sprintf("%.1f niveaux/jour (borne %.1f)", perDay, v.MaxLevelsPerDay)
	}
	return false, 0, ""
}

// checkActivityPattern repère une cadence d'événements anormale
func (v *Validator) checkActivityPattern(state *model.UserState, now time.Time) (bool, float64, string) {
	v.mu.Lock()
	anomalies := v.anomalies[state.UserID]
	v.mu.Unlock()
	if anomalies > v.AnomalyTolerance {
		return true, 0.6, fmt.Sprintf("%d dépassements de cadence", anomalies)
	}
	return false, 0, ""
}
