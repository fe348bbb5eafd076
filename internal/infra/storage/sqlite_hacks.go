package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

// SQLiteHackRepository implements HackRepository for SQLite.
type SQLiteHackRepository struct {
	db *sql.DB
}

func NewSQLiteHackRepository(db *sql.DB) *SQLiteHackRepository {
	return &SQLiteHackRepository{db: db}
}

// SeedChallenges writes the pool so attempts can reference it.
func (r *SQLiteHackRepository) SeedChallenges(ctx context.Context, pool []hack.Challenge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO challenges (id, code, category, difficulty, solution, hint)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code=excluded.code,
			category=excluded.category,
			difficulty=excluded.difficulty,
			solution=excluded.solution,
			hint=excluded.hint
	`
	for _, c := range pool {
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Code, c.Category, string(c.Difficulty), c.Solution, c.Hint); err != nil {
			return fmt.Errorf("failed to seed challenge %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteHackRepository) CreateAttempt(ctx context.Context, a hack.Attempt) error {
	query := `
		INSERT INTO battle_hacks (id, battle_id, hack_id, user_id, hack_probability, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.BattleID, a.ChallengeID, a.UserID, a.Probability, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert battle hack: %w", err)
	}
	return nil
}

const attemptColumns = `id, battle_id, hack_id, user_id, is_solved, user_answer, hack_probability, attempted_at, solved_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (hack.Attempt, error) {
	var a hack.Attempt
	var answer sql.NullString
	var attemptedAt, solvedAt sql.NullTime
	err := row.Scan(&a.ID, &a.BattleID, &a.ChallengeID, &a.UserID, &a.Solved, &answer, &a.Probability, &attemptedAt, &solvedAt, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.Answer = answer.String
	if attemptedAt.Valid {
		a.AttemptedAt = &attemptedAt.Time
	}
	if solvedAt.Valid {
		a.SolvedAt = &solvedAt.Time
	}
	return a, nil
}

func (r *SQLiteHackRepository) Attempt(ctx context.Context, id string) (hack.Attempt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM battle_hacks WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, apperrors.NotFound("hack not found")
	}
	return a, err
}

func (r *SQLiteHackRepository) SaveSubmission(ctx context.Context, id, answer string, correct bool, at time.Time) error {
	var solvedAt sql.NullTime
	if correct {
		solvedAt = sql.NullTime{Time: at, Valid: true}
	}
	query := `
		UPDATE battle_hacks
		SET user_answer = ?, is_solved = ?, attempted_at = ?, solved_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, answer, correct, at, solvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("hack not found")
	}
	return nil
}

func (r *SQLiteHackRepository) PendingAttempts(ctx context.Context, userID int) ([]hack.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM battle_hacks WHERE user_id = ? AND is_solved = 0 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []hack.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *SQLiteHackRepository) AttemptCounts(ctx context.Context, userID int) (total, solved, failed int, err error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN is_solved = 1 THEN 1 END),
			COUNT(CASE WHEN is_solved = 0 AND attempted_at IS NOT NULL THEN 1 END)
		FROM battle_hacks
		WHERE user_id = ?
	`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&total, &solved, &failed)
	return total, solved, failed, err
}
