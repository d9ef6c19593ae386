package storage

import (
	"encoding/json"
	"fmt"

	model "github.com/iDorgham/Diet-Game-sub005/internal/models"
)

// rowScanner est la surface minimale partagée par pgx.Row et pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ScanUserState scanne une ligne (state JSONB, version) vers un UserState
func ScanUserState(scanner rowScanner) (*model.UserState, error) {
	var raw []byte
	var version int64
	if err := scanner.Scan(&raw, &version); err != nil {
		return nil, err
	}
	var state model.UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("état utilisateur corrompu: %w", err)
	}
	state.Version = version
	return &state, nil
}

// ScanLedgerEntry scanne une ligne SQL vers un LedgerEntry
func ScanLedgerEntry(scanner rowScanner) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	if err := scanner.Scan(
		&entry.ID, &entry.UserID, &entry.Currency, &entry.Amount,
		&entry.Source, &entry.BalanceAfter, &entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
