// Package storage provides the persistence layer for the arena server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
)

// BattleRepository stores finished battles.
type BattleRepository interface {
	// SaveBattle inserts a finished battle and returns its row id.
	SaveBattle(ctx context.Context, r battle.Record) (int64, error)

	// ListByUser returns the battles a trainer took part in, newest first.
	// Log holds the raw battle_log JSON as a json.RawMessage.
	ListByUser(ctx context.Context, userID, limit int) ([]battle.Record, error)
}

// HackRepository stores the challenge pool and the attempts made against it.
type HackRepository interface {
	// SeedChallenges upserts the challenge pool.
	SeedChallenges(ctx context.Context, pool []hack.Challenge) error

	CreateAttempt(ctx context.Context, a hack.Attempt) error
	Attempt(ctx context.Context, id string) (hack.Attempt, error)
	SaveSubmission(ctx context.Context, id, answer string, correct bool, at time.Time) error
	PendingAttempts(ctx context.Context, userID int) ([]hack.Attempt, error)
	AttemptCounts(ctx context.Context, userID int) (total, solved, failed int, err error)
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event events.BattleEvent) error

	// GetByBattleID retrieves all events of a battle, oldest first.
	GetByBattleID(ctx context.Context, battleID string) ([]events.BattleEvent, error)
}

// TeamRepository is the read side of trainers' teams.
// Team editing lives in another service; UpsertTeam exists for seeding.
type TeamRepository interface {
	UpsertTeam(ctx context.Context, t combatant.Team) (int64, error)
	ActiveTeam(ctx context.Context, trainerID int) (combatant.Team, error)
}
