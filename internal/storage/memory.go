package storage

import (
	"context"
	"sort"
	"sync"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// MemoryStore est l'implémentation en mémoire du Store : référence pour
// les tests et repli quand aucune base n'est configurée. Concurrence
// optimiste par numéro de version, comme l'adaptateur postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*model.UserState
	ledger map[string][]*model.LedgerEntry
	boards map[string][]model.LeaderboardEntry
}

// NewMemoryStore crée un store en mémoire vide
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.UserState),
		ledger: make(map[string][]*model.LedgerEntry),
		boards: make(map[string][]model.LeaderboardEntry),
	}
}

// ReadUserState retourne une copie profonde de l'état
func (s *MemoryStore) ReadUserState(ctx context.Context, userID string) (*model.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	return state.Clone(), nil
}

// CommitUserTransaction valide une transaction si la version lue est
// toujours la version courante
func (s *MemoryStore) CommitUserTransaction(ctx context.Context, tx *UserTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.users[tx.UserID]
	if exists && current.Version != tx.State.Version {
		return ErrConflict
	}
	if !exists && tx.State.Version != 0 {
		return ErrConflict
	}

	committed := tx.State.Clone()
	committed.Version++
	s.users[tx.UserID] = committed
	s.ledger[tx.UserID] = append(s.ledger[tx.UserID], tx.Ledger...)
	return nil
}

// SnapshotUsers retourne la vue en lecture de tous les utilisateurs,
// triée par id pour un parcours déterministe
func (s *MemoryStore) SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.UserSnapshot, 0, len(s.users))
	for _, state := range s.users {
		out = append(out, model.SnapshotOf(state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// LedgerEntries retourne les dernières écritures, les plus récentes d'abord
func (s *MemoryStore) LedgerEntries(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.ledger[userID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]*model.LedgerEntry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		e := *entries[i]
		out = append(out, &e)
	}
	return out, nil
}

// ReadLeaderboardSnapshot retourne le dernier classement calculé
func (s *MemoryStore) ReadLeaderboardSnapshot(ctx context.Context, key model.BoardKey) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.boards[key.ID()]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.LeaderboardEntry(nil), entries...), nil
}

// WriteLeaderboardSnapshot remplace le classement d'un board
func (s *MemoryStore) WriteLeaderboardSnapshot(ctx context.Context, key model.BoardKey, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[key.ID()] = append([]model.LeaderboardEntry(nil), entries...)
	return nil
}
