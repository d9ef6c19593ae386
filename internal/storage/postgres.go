package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iDorgham/Diet-Game-sub005/internal/config"
	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// PostgresStore est l'adaptateur postgres du Store. L'état utilisateur
// est persisté en JSONB avec version optimiste ; le ledger est une table
// append-only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres ouvre le pool de connexions et vérifie la liaison
func ConnectPostgres(cfg *config.Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Success("Connecté à PostgreSQL (%s:%s/%s)", cfg.DBHost, cfg.DBPort, cfg.DBName)
	return &PostgresStore{pool: pool}, nil
}

// Close ferme le pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema crée les tables si elles n'existent pas
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_states (
			user_id    TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			version    BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id            UUID PRIMARY KEY,
			user_id       TEXT NOT NULL,
			currency      TEXT NOT NULL,
			amount        INT NOT NULL,
			source        TEXT NOT NULL,
			balance_after INT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_entries(user_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
			board_id   TEXT PRIMARY KEY,
			entries    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("impossible de créer le schéma: %w", err)
	}
	return nil
}

// ReadUserState lit l'état d'un utilisateur
func (s *PostgresStore) ReadUserState(ctx context.Context, userID string) (*model.UserState, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT state, version FROM user_states WHERE user_id = $1`,
		userID,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("impossible de lire l'état de %s: %w", userID, err)
	}

	var state model.UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("état de %s corrompu: %w", userID, err)
	}
	state.Version = version
	return &state, nil
}

// CommitUserTransaction valide atomiquement l'état, le ledger et les
// déblocages d'un même événement. La contention de version remonte en
// ErrConflict pour que le moteur rejoue la transaction entière.
func (s *PostgresStore) CommitUserTransaction(ctx context.Context, utx *UserTransaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("impossible d'ouvrir la transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	state := *utx.State
	state.Version = utx.State.Version + 1
	raw, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("état de %s non sérialisable: %w", utx.UserID, err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_states (user_id, state, version, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state, version = user_states.version + 1, updated_at = now()
		WHERE user_states.version = $3
	`, utx.UserID, raw, utx.State.Version)
	if err != nil {
		return fmt.Errorf("impossible d'écrire l'état de %s: %w", utx.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	for _, entry := range utx.Ledger {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, user_id, currency, amount, source, balance_after, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entry.ID, entry.UserID, entry.Currency, entry.Amount, entry.Source, entry.BalanceAfter, entry.CreatedAt); err != nil {
			return fmt.Errorf("impossible d'écrire le ledger de %s: %w", utx.UserID, err)
		}
	}

	return tx.Commit(ctx)
}

// SnapshotUsers retourne la vue en lecture de tous les utilisateurs
func (s *PostgresStore) SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state, version FROM user_states ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("impossible de lister les états: %w", err)
	}
	defer rows.Close()

	var out []model.UserSnapshot
	for rows.Next() {
		state, err := ScanUserState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SnapshotOf(state))
	}
	return out, rows.Err()
}

// LedgerEntries retourne les dernières écritures, les plus récentes d'abord
func (s *PostgresStore) LedgerEntries(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, currency, amount, source, balance_after, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le ledger de %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		entry, err := ScanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ReadLeaderboardSnapshot retourne le dernier classement calculé
func (s *PostgresStore) ReadLeaderboardSnapshot(ctx context.Context, key model.BoardKey) ([]model.LeaderboardEntry, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT entries FROM leaderboard_snapshots WHERE board_id = $1`,
		key.ID(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le classement %s: %w", key.ID(), err)
	}

	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("classement %s corrompu: %w", key.ID(), err)
	}
	return entries, nil
}

// WriteLeaderboardSnapshot remplace le classement d'un board
func (s *PostgresStore) WriteLeaderboardSnapshot(ctx context.Context, key model.BoardKey, entries []model.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("classement %s non sérialisable: %w", key.ID(), err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO leaderboard_snapshots (board_id, entries, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (board_id) DO UPDATE
		SET entries = EXCLUDED.entries, updated_at = now()
	`, key.ID(), raw)
	if err != nil {
		return fmt.Errorf("impossible d'écrire le classement %s: %w", key.ID(), err)
	}
	return nil
}
