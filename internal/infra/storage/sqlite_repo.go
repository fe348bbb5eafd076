package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event events.BattleEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, battle_id, timestamp, event_type, actor_id, turn, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.BattleID, event.Timestamp, string(event.Type), event.ActorID,
		event.Turn, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) GetByBattleID(ctx context.Context, battleID string) ([]events.BattleEvent, error) {
	query := `SELECT id, battle_id, timestamp, event_type, actor_id, turn, payload FROM events WHERE battle_id = ? ORDER BY timestamp ASC, rowid ASC`
	rows, err := r.db.QueryContext(ctx, query, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []events.BattleEvent
	for rows.Next() {
		var e events.BattleEvent
		var eventType, payloadStr string
		if err := rows.Scan(&e.ID, &e.BattleID, &e.Timestamp, &eventType, &e.ActorID, &e.Turn, &payloadStr); err != nil {
			return nil, err
		}
		e.Type = events.EventType(eventType)
		e.Payload = json.RawMessage(payloadStr)
		result = append(result, e)
	}
	return result, rows.Err()
}

// EventPersister adapts the repository to the event log's write-through hook.
type EventPersister struct {
	repo    *SQLiteEventRepository
	timeout time.Duration
	metrics *metrics.Collector
}

// NewEventPersister bounds every write by timeout.
func NewEventPersister(repo *SQLiteEventRepository, timeout time.Duration, m *metrics.Collector) *EventPersister {
	if m == nil {
		m = metrics.Get()
	}
	return &EventPersister{repo: repo, timeout: timeout, metrics: m}
}

// Append implements events.EventPersister.
func (p *EventPersister) Append(event events.BattleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	err := p.repo.Append(ctx, event)
	p.metrics.RecordEventWrite(err)
	return err
}

// ---------------------------------------------------------
// SQLiteBattleRepository
// ---------------------------------------------------------

type SQLiteBattleRepository struct {
	db *sql.DB
}

func NewSQLiteBattleRepository(db *sql.DB) *SQLiteBattleRepository {
	return &SQLiteBattleRepository{db: db}
}

func (r *SQLiteBattleRepository) SaveBattle(ctx context.Context, rec battle.Record) (int64, error) {
	logBytes, err := json.Marshal(rec.Log)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal battle log: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var winner sql.NullInt64
	if rec.WinnerID != nil {
		winner = sql.NullInt64{Int64: int64(*rec.WinnerID), Valid: true}
	}

	query := `
		INSERT INTO battles (attacker_id, defender_id, attacker_team_id, defender_team_id, winner_id, battle_log, is_ghost_battle, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.AttackerID, rec.DefenderID, rec.AttackerTeamID, rec.DefenderTeamID,
		winner, string(logBytes), rec.Ghost, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert battle: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteBattleRepository) ListByUser(ctx context.Context, userID, limit int) ([]battle.Record, error) {
	query := `
		SELECT id, attacker_id, defender_id, attacker_team_id, defender_team_id, winner_id, battle_log, is_ghost_battle, created_at
		FROM battles
		WHERE attacker_id = ? OR defender_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []battle.Record
	for rows.Next() {
		var rec battle.Record
		var winner sql.NullInt64
		var logStr string
		if err := rows.Scan(
			&rec.ID, &rec.AttackerID, &rec.DefenderID, &rec.AttackerTeamID, &rec.DefenderTeamID,
			&winner, &logStr, &rec.Ghost, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if winner.Valid {
			w := int(winner.Int64)
			rec.WinnerID = &w
		}
		rec.Log = json.RawMessage(logStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
