package engine

import "errors"

// Taxonomie d'erreurs du moteur. Chaque événement en échec laisse une
// trace sur le canal sortant ; rien n'est perdu silencieusement.
var (
	// ErrInvalidEvent : événement malformé ou de type inconnu.
	// Loggé et abandonné, jamais rejoué.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrTransactionFailed : contention répétée sur le même utilisateur
	// après épuisement des tentatives.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDuplicateUnlock : seconde distribution pour un UnlockRecord
	// déjà récompensé. Traitée en no-op, jamais en erreur.
	ErrDuplicateUnlock = errors.New("duplicate unlock")

	// ErrRewardBlocked : verdict anti-triche bloquant la distribution.
	ErrRewardBlocked = errors.New("reward blocked")

	// ErrInsufficientCoins : solde insuffisant pour une dépense
	// (protection ou récupération de streak).
	ErrInsufficientCoins = errors.New("insufficient coins")

	// ErrStreakTransition : transition de streak non permise depuis
	// l'état courant.
	ErrStreakTransition = errors.New("streak transition not allowed")
)
