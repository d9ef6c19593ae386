package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iDorgham/Diet-Game-sub005/internal/catalog"
	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
	"github.com/iDorgham/Diet-Game-sub005/internal/storage"
)

const (
	lockStripes      = 64
	maxCommitRetries = 3
)

// Options paramètre le moteur
type Options struct {
	// EventBufferSize dimensionne le canal d'événements sortants
	EventBufferSize int
	// LargeGrantThreshold déclenche une validation anti-triche
	// opportuniste avant les grosses distributions
	LargeGrantThreshold int
	// Boards liste les classements maintenus
	Boards []model.BoardConfig
}

// Engine est le moteur de progression et de récompense. Toutes les
// écritures pour un utilisateur sont sérialisées (un seul écrivain par
// utilisateur) ; des utilisateurs distincts avancent en parallèle, sans
// verrou global. Aucun appel collaborateur ne se fait dans la section
// critique : tout sort par le canal d'événements après commit.
type Engine struct {
	store       storage.Store
	cat         atomic.Pointer[catalog.Catalog]
	distributor *Distributor
	ranker      *Ranker
	validator   *Validator
	boards      []model.BoardConfig

	locks  [lockStripes]sync.Mutex
	events chan model.OutboundEvent

	largeGrant int
	dropped    atomic.Int64

	// now est l'horloge du moteur, remplaçable en test
	now func() time.Time
}

// New crée le moteur sur un store et un catalogue chargés
func New(store storage.Store, cat *catalog.Catalog, opts Options) *Engine {
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 1024
	}
	if opts.LargeGrantThreshold <= 0 {
		opts.LargeGrantThreshold = 500
	}
	if len(opts.Boards) == 0 {
		opts.Boards = DefaultBoards()
	}
	e := &Engine{
		store:       store,
		distributor: NewDistributor(),
		ranker:      NewRanker(),
		validator:   NewValidator(),
		boards:      opts.Boards,
		events:      make(chan model.OutboundEvent, opts.EventBufferSize),
		largeGrant:  opts.LargeGrantThreshold,
		now:         func() time.Time { return time.Now().UTC() },
	}
	e.cat.Store(cat)
	return e
}

// DefaultBoards retourne les classements maintenus par défaut
func DefaultBoards() []model.BoardConfig {
	return []model.BoardConfig{
		{Key: model.BoardKey{Category: "overall", Scope: "global", Period: "all-time"}, UpdateFrequency: 5 * time.Minute, Limit: 100},
		{Key: model.BoardKey{Category: "meals_logged", Scope: "global", Period: "all-time"}, UpdateFrequency: 15 * time.Minute, Limit: 100},
		{Key: model.BoardKey{Category: "workout_minutes", Scope: "global", Period: "all-time"}, UpdateFrequency: 15 * time.Minute, Limit: 100},
	}
}

// Events expose le canal d'événements sortants. Livraison at-least-once
// après commit ; les consommateurs dédupliquent par id d'événement.
func (e *Engine) Events() <-chan model.OutboundEvent {
	return e.events
}

// Catalog retourne le catalogue courant
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat.Load()
}

// ReloadCatalog remplace le catalogue sur montée de version. Les
// transactions en cours terminent sur l'ancien snapshot.
func (e *Engine) ReloadCatalog(cat *catalog.Catalog) {
	old := e.cat.Swap(cat)
	logger.Info("catalogue rechargé: v%d → v%d", old.Version(), cat.Version())
}

// Validator expose le validateur anti-triche
func (e *Engine) Validator() *Validator {
	return e.validator
}

// lockFor retourne le verrou de sérialisation de l'utilisateur
func (e *Engine) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &e.locks[h.Sum32()%lockStripes]
}

// ProcessEvent applique un événement d'activité : mise à jour des
// métriques, streaks, évaluation des déblocages et distributions, le
// tout dans une transaction par utilisateur, atomique et rejouée de
// façon bornée en cas de contention.
func (e *Engine) ProcessEvent(ctx context.Context, ev model.ActivityEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	cat := e.cat.Load()
	tracker := NewTracker(cat)
	evaluator := NewEvaluator(cat)
	streaks := NewStreakManager(cat)

	e.validator.ObserveEvent(ev.UserID, ev.Timestamp)

	mu := e.lockFor(ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		state, err := e.store.ReadUserState(ctx, ev.UserID)
		if errors.Is(err, storage.ErrUnknownUser) {
			// Premier événement de cet utilisateur
			state = model.NewUserState(ev.UserID, ev.Timestamp)
		} else if err != nil {
			lastErr = err
			continue
		}

		changed, err := tracker.Apply(state, ev)
		if err != nil {
			// Invalide : loggé, tracé, abandonné. Le rejouer ne
			// changerait pas sa validité.
			logger.Warning("événement %s rejeté: %v", ev.ID, err)
			e.emit(model.OutboundEvent{
				ID:     uuid.NewString(),
				Kind:   model.OutboundErrorTrace,
				UserID: ev.UserID,
				At:     e.now(),
				Trace:  &model.TracePayload{Code: "invalid_event", Detail: err.Error(), EventID: ev.ID},
			})
			return err
		}

		tx := &storage.UserTransaction{UserID: ev.UserID, State: state}
		var out []model.OutboundEvent

		// Streaks qualifiés par cet événement
		mapping := cat.EventMapping(ev.Type)
		for _, category := range mapping.StreakCategories {
			res, err := streaks.RecordActivity(state, category, ev.Timestamp)
			if err != nil {
				logger.Warning("streak %s/%s: %v", ev.UserID, category, err)
				continue
			}
			changed[model.StreakMetric(category)] = float64(res.State.Count)
			if !res.Counted {
				continue
			}
			def := cat.StreakDefinition(category)
			for _, milestone := range res.Milestones {
				e.applyGrant(tx, &out, func() (*GrantResult, error) {
					return e.distributor.GrantStreakMilestone(state, def, milestone, ev.Timestamp)
				}, ev.ID)
			}
			if res.DailyBonusXP > 0 {
				e.applyGrant(tx, &out, func() (*GrantResult, error) {
					return e.distributor.GrantDailyBonus(state, category, res.DailyBonusXP, ev.Timestamp)
				}, ev.ID)
			}
		}

		// Un seul passage d'évaluation par événement : les distributions
		// ne réalimentent pas les métriques dans le même passage
		candidates := evaluator.Evaluate(state, changed, ev.Timestamp)

		if e.needsDeepCheck(candidates) {
			if _, err := e.validator.Validate(ctx, state, e.now()); err != nil {
				lastErr = err
				continue
			}
		}

		for _, cand := range candidates {
			cand := cand
			e.applyGrant(tx, &out, func() (*GrantResult, error) {
				return e.distributor.GrantUnlock(state, cand, ev.Timestamp)
			}, ev.ID)
		}

		if err := e.store.CommitUserTransaction(ctx, tx); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				lastErr = err
				continue
			}
			// Panne transitoire de persistance : la transaction entière
			// est rejouée depuis la lecture
			logger.Error("commit de %s échoué (tentative %d): %v", ev.UserID, attempt+1, err)
			lastErr = err
			continue
		}

		e.emit(out...)
		return nil
	}

	e.emit(model.OutboundEvent{
		ID:     uuid.NewString(),
		Kind:   model.OutboundErrorTrace,
		UserID: ev.UserID,
		At:     e.now(),
		Trace:  &model.TracePayload{Code: "transaction_failed", Detail: fmt.Sprint(lastErr), EventID: ev.ID},
	})
	return fmt.Errorf("%w après %d tentatives: %v", ErrTransactionFailed, maxCommitRetries, lastErr)
}

// applyGrant exécute une distribution et accumule ses effets dans la
// transaction. Un blocage anti-triche est tracé, jamais silencieux.
func (e *Engine) applyGrant(tx *storage.UserTransaction, out *[]model.OutboundEvent, grant func() (*GrantResult, error), eventID string) {
	res, err := grant()
	if errors.Is(err, ErrRewardBlocked) {
		*out = append(*out, model.OutboundEvent{
			ID:     uuid.NewString(),
			Kind:   model.OutboundRewardBlocked,
			UserID: tx.UserID,
			At:     e.now(),
			Trace:  &model.TracePayload{Code: "reward_blocked", Detail: err.Error(), EventID: eventID},
		})
		return
	}
	if err != nil {
		logger.Error("distribution pour %s échouée: %v", tx.UserID, err)
		return
	}
	if res.NoOp {
		return
	}
	tx.Ledger = append(tx.Ledger, res.Entries...)
	if res.Record != nil {
		tx.Unlocks = append(tx.Unlocks, res.Record)
	}
	*out = append(*out, res.Events...)
}

// needsDeepCheck décide d'une validation anti-triche opportuniste avant
// une grosse distribution
func (e *Engine) needsDeepCheck(candidates []UnlockCandidate) bool {
	total := 0
	for _, cand := range candidates {
		total += cand.Definition.Reward.XP + cand.Definition.Reward.Coins
	}
	return total >= e.largeGrant
}

// emit pousse les événements sortants après commit. Le canal est
// dimensionné large ; un consommateur à l'arrêt ne doit pas bloquer
// le traitement des autres utilisateurs.
func (e *Engine) emit(events ...model.OutboundEvent) {
	for _, ev := range events {
		select {
		case e.events <- ev:
		default:
			n := e.dropped.Add(1)
			logger.Error("canal sortant saturé, événement %s perdu (%d au total)", ev.ID, n)
		}
	}
}

// UseProtection consomme un jeton de protection de streak. La dépense
// en coins part dans la même transaction.
func (e *Engine) UseProtection(ctx context.Context, userID, category string) error {
	return e.withUser(ctx, userID, func(state *model.UserState, tx *storage.UserTransaction, out *[]model.OutboundEvent) error {
		streaks := NewStreakManager(e.cat.Load())
		now := e.now()
		cost, err := streaks.UseProtection(state, category, now)
		if err != nil {
			return err
		}
		res, err := e.distributor.Spend(state, cost, "spend:protection:"+category, now)
		if err != nil {
			return err
		}
		tx.Ledger = append(tx.Ledger, res.Entries...)
		return nil
	})
}

// RecoverStreak exécute la récupération explicite d'un streak rompu
func (e *Engine) RecoverStreak(ctx context.Context, userID, category string) error {
	return e.withUser(ctx, userID, func(state *model.UserState, tx *storage.UserTransaction, out *[]model.OutboundEvent) error {
		streaks := NewStreakManager(e.cat.Load())
		now := e.now()
		cost, err := streaks.Recover(state, category, now)
		if err != nil {
			return err
		}
		res, err := e.distributor.Spend(state, cost, "spend:recovery:"+category, now)
		if err != nil {
			return err
		}
		tx.Ledger = append(tx.Ledger, res.Entries...)
		return nil
	})
}

// CheckStreakRisks balaye les streaks de tous les utilisateurs et émet
// les signaux de risque pour le collaborateur de notification
func (e *Engine) CheckStreakRisks(ctx context.Context, now time.Time) error {
	snapshots, err := e.store.SnapshotUsers(ctx)
	if err != nil {
		return err
	}
	cat := e.cat.Load()
	for _, snap := range snapshots {
		userID := snap.UserID
		err := e.withUser(ctx, userID, func(state *model.UserState, tx *storage.UserTransaction, out *[]model.OutboundEvent) error {
			streaks := NewStreakManager(cat)
			for category := range state.Streaks {
				if signal := streaks.CheckRisk(state, category, now); signal != nil {
					*out = append(*out, model.OutboundEvent{
						ID:     uuid.NewString(),
						Kind:   model.OutboundStreakRisk,
						UserID: userID,
						At:     now,
						Risk: &model.RiskPayload{
							Category: signal.Category,
							Count:    signal.Count,
							Deadline: signal.Deadline,
						},
					})
				}
			}
			return nil
		})
		if err != nil {
			logger.Warning("évaluation de risque pour %s: %v", userID, err)
		}
	}
	return nil
}

// RecomputeLeaderboards recalcule tous les classements depuis l'état
// commité. Éventuellement cohérent : tourne en parallèle des
// transactions par utilisateur sans jamais les bloquer.
func (e *Engine) RecomputeLeaderboards(ctx context.Context, now time.Time) error {
	snapshots, err := e.store.SnapshotUsers(ctx)
	if err != nil {
		return fmt.Errorf("impossible de lire les snapshots: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, board := range e.boards {
		board := board
		g.Go(func() error {
			previous, err := e.store.ReadLeaderboardSnapshot(ctx, board.Key)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			entries, events := e.ranker.Recompute(board, snapshots, previous, now)
			if err := e.store.WriteLeaderboardSnapshot(ctx, board.Key, entries); err != nil {
				return err
			}
			e.emit(events...)
			return nil
		})
	}
	return g.Wait()
}

// RunAnticheatSweep valide tous les utilisateurs (balayage planifié).
// Chaque verdict est commité entièrement ou pas du tout.
func (e *Engine) RunAnticheatSweep(ctx context.Context, now time.Time) error {
	snapshots, err := e.store.SnapshotUsers(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.ValidateUser(ctx, snap.UserID); err != nil {
			logger.Warning("validation de %s: %v", snap.UserID, err)
		}
	}
	return nil
}

// ValidateUser exécute la validation anti-triche d'un utilisateur et
// commite le verdict
func (e *Engine) ValidateUser(ctx context.Context, userID string) (*model.Verdict, error) {
	var verdict *model.Verdict
	err := e.withUser(ctx, userID, func(state *model.UserState, tx *storage.UserTransaction, out *[]model.OutboundEvent) error {
		v, err := e.validator.Validate(ctx, state, e.now())
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	return verdict, err
}

// ClearVerdict lève un verdict après revue manuelle
func (e *Engine) ClearVerdict(ctx context.Context, userID string) error {
	return e.withUser(ctx, userID, func(state *model.UserState, tx *storage.UserTransaction, out *[]model.OutboundEvent) error {
		e.validator.ClearVerdict(state, e.now())
		return nil
	})
}

// ReadUserState retourne une copie de l'état commité d'un utilisateur
func (e *Engine) ReadUserState(ctx context.Context, userID string) (*model.UserState, error) {
	return e.store.ReadUserState(ctx, userID)
}

// withUser déroule une transaction par utilisateur : lecture, mutation,
// commit, avec rejeu borné sur contention
func (e *Engine) withUser(ctx context.Context, userID string, fn func(*model.UserState, *storage.UserTransaction, *[]model.OutboundEvent) error) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		state, err := e.store.ReadUserState(ctx, userID)
		if err != nil {
			return err
		}
		tx := &storage.UserTransaction{UserID: userID, State: state}
		var out []model.OutboundEvent
		if err := fn(state, tx, &out); err != nil {
			return err
		}
		if err := e.store.CommitUserTransaction(ctx, tx); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				lastErr = err
				continue
			}
			lastErr = err
			continue
		}
		e.emit(out...)
		return nil
	}
	return fmt.Errorf("%w après %d tentatives: %v", ErrTransactionFailed, maxCommitRetries, lastErr)
}
