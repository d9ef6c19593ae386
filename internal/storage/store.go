package storage

import (
	"context"
	"errors"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

var (
	// ErrUnknownUser : aucun état pour cet utilisateur
	ErrUnknownUser = errors.New("unknown user")

	// ErrConflict : contention de version sur le commit ; la transaction
	// entière est à rejouer
	ErrConflict = errors.New("transaction conflict")

	// ErrNotFound : snapshot de classement absent
	ErrNotFound = errors.New("not found")
)

// UserTransaction est l'unité de commit par utilisateur : le nouvel
// état, les écritures au ledger et les déblocages posés par le même
// événement. Tout est visible ensemble, ou rien.
type UserTransaction struct {
	UserID  string
	State   *model.UserState
	Ledger  []*model.LedgerEntry
	Unlocks []*model.UnlockRecord
}

// Store est l'interface de persistance consommée par le moteur.
// CommitUserTransaction doit être atomique et détecter la contention
// par version optimiste (ErrConflict).
type Store interface {
	// ReadUserState retourne une copie isolée de l'état, ErrUnknownUser si absent
	ReadUserState(ctx context.Context, userID string) (*model.UserState, error)

	// CommitUserTransaction valide atomiquement une transaction utilisateur
	CommitUserTransaction(ctx context.Context, tx *UserTransaction) error

	// SnapshotUsers retourne la vue en lecture de tous les utilisateurs
	SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error)

	// LedgerEntries retourne les dernières écritures d'un utilisateur
	LedgerEntries(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error)

	// ReadLeaderboardSnapshot retourne le dernier classement calculé
	ReadLeaderboardSnapshot(ctx context.Context, key model.BoardKey) ([]model.LeaderboardEntry, error)

	// WriteLeaderboardSnapshot remplace le classement d'un board
	WriteLeaderboardSnapshot(ctx context.Context, key model.BoardKey, entries []model.LeaderboardEntry) error
}
