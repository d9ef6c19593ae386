package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// ErrDefinitionInvalid signale une définition rejetée au chargement.
// La définition est ignorée avec un warning, jamais appliquée à moitié.
var ErrDefinitionInvalid = errors.New("invalid definition")

// Catalog est l'ensemble immuable et versionné des définitions
// d'achievements, de quêtes et de streaks. Chargé au démarrage,
// en lecture seule pour tous les autres composants.
type Catalog struct {
	version  int
	defs     map[string]*model.Definition
	ordered  []*model.Definition
	byMetric map[string][]*model.Definition
	events   map[string]*model.EventMapping
	streaks  map[string]*model.StreakDefinition
}

// Structures brutes du fichier YAML. Les durées sont des chaînes
// ("24h", "30m") converties à la validation.
type rawCatalog struct {
	Version     int             `yaml:"version"`
	Events      []rawEvent      `yaml:"events"`
	Streaks     []rawStreak     `yaml:"streaks"`
	Definitions []rawDefinition `yaml:"definitions"`
}

type rawEvent struct {
	Type    string   `yaml:"type"`
	Metrics []struct {
		Name         string `yaml:"name"`
		Kind         string `yaml:"kind"`
		PayloadField string `yaml:"payload_field"`
	} `yaml:"metrics"`
	Streaks []string `yaml:"streaks"`
}

type rawStreak struct {
	Category       string  `yaml:"category"`
	GracePeriod    string  `yaml:"grace_period"`
	WarningBefore  string  `yaml:"warning_before"`
	RecoveryWindow string  `yaml:"recovery_window"`
	RecoveryCost   int     `yaml:"recovery_cost"`
	FreezeTokens   int     `yaml:"freeze_tokens"`
	DailyBonusXP   int     `yaml:"daily_bonus_xp"`
	BaseMultiplier float64 `yaml:"base_multiplier"`
	MaxMultiplier  float64 `yaml:"max_multiplier"`
	Milestones     []struct {
		Days   int          `yaml:"days"`
		Reward model.Reward `yaml:"reward"`
	} `yaml:"milestones"`
}

type rawDefinition struct {
	ID          string          `yaml:"id"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Kind        string          `yaml:"kind"`
	Category    string          `yaml:"category"`
	Rarity      string          `yaml:"rarity"`
	Condition   model.Condition `yaml:"condition"`
	Reward      model.Reward    `yaml:"reward"`
	Repeatable  bool            `yaml:"repeatable"`
	Cooldown    string          `yaml:"cooldown"`
	ExpiresAt   *time.Time      `yaml:"expires_at"`
}

// Load charge et valide le catalogue depuis un fichier YAML
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le catalogue: %w", err)
	}
	return Parse(data)
}

// Parse construit un catalogue depuis un document YAML
func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalogue illisible: %w", err)
	}
	if raw.Version <= 0 {
		return nil, fmt.Errorf("version de catalogue manquante")
	}

	c := &Catalog{
		version:  raw.Version,
		defs:     make(map[string]*model.Definition),
		byMetric: make(map[string][]*model.Definition),
		events:   make(map[string]*model.EventMapping),
		streaks:  make(map[string]*model.StreakDefinition),
	}

	for _, re := range raw.Events {
		mapping, err := buildEvent(re)
		if err != nil {
			logger.Warning("catalogue v%d: événement %q ignoré: %v", raw.Version, re.Type, err)
			continue
		}
		if _, dup := c.events[mapping.Type]; dup {
			logger.Warning("catalogue v%d: événement %q en double, ignoré", raw.Version, re.Type)
			continue
		}
		c.events[mapping.Type] = mapping
	}

	for _, rs := range raw.Streaks {
		def, err := buildStreak(rs)
		if err != nil {
			logger.Warning("catalogue v%d: streak %q ignoré: %v", raw.Version, rs.Category, err)
			continue
		}
		c.streaks[def.Category] = def
	}

	for _, rd := range raw.Definitions {
		def, err := c.buildDefinition(rd)
		if err != nil {
			logger.Warning("catalogue v%d: définition %q ignorée: %v", raw.Version, rd.ID, err)
			continue
		}
		if _, dup := c.defs[def.ID]; dup {
			logger.Warning("catalogue v%d: définition %q en double, ignorée", raw.Version, def.ID)
			continue
		}
		c.defs[def.ID] = def
		c.ordered = append(c.ordered, def)
		c.byMetric[def.Condition.Metric] = append(c.byMetric[def.Condition.Metric], def)
	}

	// Ordre stable pour toute itération ultérieure
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	for _, defs := range c.byMetric {
		sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	}

	logger.Info("catalogue v%d chargé: %d définitions, %d événements, %d streaks",
		c.version, len(c.defs), len(c.events), len(c.streaks))
	return c, nil
}

func buildEvent(re rawEvent) (*model.EventMapping, error) {
	if re.Type == "" {
		return nil, fmt.Errorf("%w: type manquant", ErrDefinitionInvalid)
	}
	if len(re.Metrics) == 0 && len(re.Streaks) == 0 {
		return nil, fmt.Errorf("%w: aucun effet", ErrDefinitionInvalid)
	}
	mapping := &model.EventMapping{Type: re.Type, StreakCategories: re.Streaks}
	for _, rm := range re.Metrics {
		kind := model.MetricKind(rm.Kind)
		if kind == "" {
			kind = model.MetricCounter
		}
		if kind != model.MetricCounter && kind != model.MetricDaily {
			return nil, fmt.Errorf("%w: kind %q inconnu", ErrDefinitionInvalid, rm.Kind)
		}
		if rm.Name == "" {
			return nil, fmt.Errorf("%w: métrique sans nom", ErrDefinitionInvalid)
		}
		mapping.Metrics = append(mapping.Metrics, model.MetricUpdate{
			Name:         rm.Name,
			Kind:         kind,
			PayloadField: rm.PayloadField,
		})
	}
	return mapping, nil
}

func buildStreak(rs rawStreak) (*model.StreakDefinition, error) {
	if rs.Category == "" {
		return nil, fmt.Errorf("%w: catégorie manquante", ErrDefinitionInvalid)
	}
	grace, err := parseDuration(rs.GracePeriod, 6*time.Hour)
	if err != nil {
		return nil, err
	}
	warning, err := parseDuration(rs.WarningBefore, 4*time.Hour)
	if err != nil {
		return nil, err
	}
	recovery, err := parseDuration(rs.RecoveryWindow, 48*time.Hour)
	if err != nil {
		return nil, err
	}
	def := &model.StreakDefinition{
		Category:       rs.Category,
		GracePeriod:    grace,
		WarningBefore:  warning,
		RecoveryWindow: recovery,
		RecoveryCost:   rs.RecoveryCost,
		FreezeTokens:   rs.FreezeTokens,
		DailyBonusXP:   rs.DailyBonusXP,
		BaseMultiplier: rs.BaseMultiplier,
		MaxMultiplier:  rs.MaxMultiplier,
	}
	if def.BaseMultiplier <= 0 {
		def.BaseMultiplier = 0.1
	}
	if def.MaxMultiplier <= 0 {
		def.MaxMultiplier = 3.0
	}
	if def.RecoveryCost < 0 {
		return nil, fmt.Errorf("%w: coût de récupération négatif", ErrDefinitionInvalid)
	}
	for _, rm := range rs.Milestones {
		if rm.Days <= 0 || rm.Reward.XP < 0 || rm.Reward.Coins < 0 {
			return nil, fmt.Errorf("%w: jalon invalide (%d jours)", ErrDefinitionInvalid, rm.Days)
		}
		def.Milestones = append(def.Milestones, model.StreakMilestone{Days: rm.Days, Reward: rm.Reward})
	}
	sort.Slice(def.Milestones, func(i, j int) bool { return def.Milestones[i].Days < def.Milestones[j].Days })
	return def, nil
}

func (c *Catalog) buildDefinition(rd rawDefinition) (*model.Definition, error) {
	if rd.ID == "" {
		return nil, fmt.Errorf("%w: id manquant", ErrDefinitionInvalid)
	}
	kind := model.DefinitionKind(rd.Kind)
	if kind == "" {
		kind = model.KindAchievement
	}
	if kind != model.KindAchievement && kind != model.KindQuest {
		return nil, fmt.Errorf("%w: kind %q inconnu", ErrDefinitionInvalid, rd.Kind)
	}
	rarity := model.Rarity(rd.Rarity)
	if !rarity.Valid() {
		return nil, fmt.Errorf("%w: rareté %q inconnue", ErrDefinitionInvalid, rd.Rarity)
	}
	if !rd.Condition.Comparator.Valid() {
		return nil, fmt.Errorf("%w: comparateur %q inconnu", ErrDefinitionInvalid, rd.Condition.Comparator)
	}
	if rd.Condition.Comparator == model.ComparatorIN && len(rd.Condition.Values) == 0 {
		return nil, fmt.Errorf("%w: comparateur in sans valeurs", ErrDefinitionInvalid)
	}
	if !c.KnownMetric(rd.Condition.Metric) {
		return nil, fmt.Errorf("%w: métrique %q inconnue", ErrDefinitionInvalid, rd.Condition.Metric)
	}
	if rd.Reward.XP < 0 || rd.Reward.Coins < 0 {
		return nil, fmt.Errorf("%w: récompense négative", ErrDefinitionInvalid)
	}
	cooldown, err := parseDuration(rd.Cooldown, 0)
	if err != nil {
		return nil, err
	}
	return &model.Definition{
		ID:          rd.ID,
		Title:       rd.Title,
		Description: rd.Description,
		Kind:        kind,
		Category:    rd.Category,
		Rarity:      rarity,
		Condition:   rd.Condition,
		Reward:      rd.Reward,
		Repeatable:  rd.Repeatable,
		Cooldown:    cooldown,
		ExpiresAt:   rd.ExpiresAt,
	}, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: durée %q invalide", ErrDefinitionInvalid, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: durée %q négative", ErrDefinitionInvalid, s)
	}
	return d, nil
}

// Version retourne la version du catalogue
func (c *Catalog) Version() int { return c.version }

// Definition retourne une définition par id, nil si absente
func (c *Catalog) Definition(id string) *model.Definition { return c.defs[id] }

// Definitions retourne toutes les définitions, triées par id
func (c *Catalog) Definitions() []*model.Definition { return c.ordered }

// DefinitionsForMetric retourne les définitions dont la condition
// référence la métrique donnée, triées par id. C'est l'index qui évite
// un scan de toutes les définitions à chaque événement.
func (c *Catalog) DefinitionsForMetric(metric string) []*model.Definition {
	return c.byMetric[metric]
}

// EventMapping retourne le mapping d'un type d'événement, nil si inconnu
func (c *Catalog) EventMapping(eventType string) *model.EventMapping {
	return c.events[eventType]
}

// StreakDefinition retourne la définition d'une catégorie de streak
func (c *Catalog) StreakDefinition(category string) *model.StreakDefinition {
	return c.streaks[category]
}

// StreakDefinitions retourne toutes les définitions de streak
func (c *Catalog) StreakDefinitions() []*model.StreakDefinition {
	out := make([]*model.StreakDefinition, 0, len(c.streaks))
	for _, def := range c.streaks {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// KnownMetric indique si la métrique est produite par un événement ou
// dérivée d'un streak déclaré
func (c *Catalog) KnownMetric(name string) bool {
	if name == "" {
		return false
	}
	for _, mapping := range c.events {
		for _, m := range mapping.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	for cat := range c.streaks {
		if name == model.StreakMetric(cat) {
			return true
		}
	}
	return false
}
