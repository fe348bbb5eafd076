package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

// SQLiteTeamRepository implements TeamRepository for SQLite.
type SQLiteTeamRepository struct {
	db *sql.DB
}

func NewSQLiteTeamRepository(db *sql.DB) *SQLiteTeamRepository {
	return &SQLiteTeamRepository{db: db}
}

// UpsertTeam writes a team and its members. An active team deactivates the
// trainer's other teams, so at most one stays active.
func (r *SQLiteTeamRepository) UpsertTeam(ctx context.Context, t combatant.Team) (int64, error) {
	if len(t.SpeciesIDs) > combatant.MaxRosterSize {
		return 0, apperrors.Validation("a team holds at most 6 combatants")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if t.Active {
		if _, err := tx.ExecContext(ctx, `UPDATE teams SET is_active = 0 WHERE user_id = ?`, t.TrainerID); err != nil {
			return 0, fmt.Errorf("failed to deactivate teams: %w", err)
		}
	}

	id := t.ID
	if id == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO teams (user_id, team_name, is_active, created_at) VALUES (?, ?, ?, ?)`,
			t.TrainerID, t.Name, t.Active, time.Now(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert team: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`UPDATE teams SET user_id = ?, team_name = ?, is_active = ? WHERE id = ?`,
			t.TrainerID, t.Name, t.Active, id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update team: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, id); err != nil {
			return 0, fmt.Errorf("failed to clear team members: %w", err)
		}
	}

	for pos, speciesID := range t.SpeciesIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, position, pokemon_id) VALUES (?, ?, ?)`,
			id, pos, speciesID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert team member: %w", err)
		}
	}
	return id, tx.Commit()
}

// ActiveTeam returns the trainer's active team with members in slot order.
func (r *SQLiteTeamRepository) ActiveTeam(ctx context.Context, trainerID int) (combatant.Team, error) {
	var t combatant.Team
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, team_name, is_active FROM teams WHERE user_id = ? AND is_active = 1 ORDER BY id DESC LIMIT 1`,
		trainerID,
	).Scan(&t.ID, &t.TrainerID, &t.Name, &t.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return t, apperrors.NotFound("no active team")
	}
	if err != nil {
		return t, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT pokemon_id FROM team_members WHERE team_id = ? ORDER BY position ASC`, t.ID)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var speciesID int
		if err := rows.Scan(&speciesID); err != nil {
			return t, err
		}
		t.SpeciesIDs = append(t.SpeciesIDs, speciesID)
	}
	return t, rows.Err()
}
