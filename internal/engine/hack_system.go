package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

// HackStore persists hack attempts.
type HackStore interface {
	CreateAttempt(ctx context.Context, a hack.Attempt) error
	// Attempt returns a NotFound error when the id is unknown.
	Attempt(ctx context.Context, id string) (hack.Attempt, error)
	SaveSubmission(ctx context.Context, id, answer string, correct bool, at time.Time) error
	PendingAttempts(ctx context.Context, userID int) ([]hack.Attempt, error)
	AttemptCounts(ctx context.Context, userID int) (total, solved, failed int, err error)
}

// TriggeredHack is returned to the player when a roll succeeds.
type TriggeredHack struct {
	Attempt     hack.Attempt   `json:"battle_hack"`
	Challenge   hack.Challenge `json:"hack"`
	Probability float64        `json:"probability"`
}

// PendingHack pairs an unsolved attempt with its challenge.
type PendingHack struct {
	Attempt   hack.Attempt   `json:"battleHack"`
	Challenge hack.Challenge `json:"hack"`
}

// HackSystem rolls, stores and grades hack challenges. It never touches battle state.
type HackSystem struct {
	pool     []hack.Challenge
	byID     map[int]hack.Challenge
	store    HackStore
	dice     *Dice
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewHackSystem creates a hack system over a non-empty challenge pool.
func NewHackSystem(pool []hack.Challenge, store HackStore, dice *Dice, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector) *HackSystem {
	byID := make(map[int]hack.Challenge, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}
	return &HackSystem{
		pool:     pool,
		byID:     byID,
		store:    store,
		dice:     dice,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		now:      time.Now,
	}
}

// Catalog lists the pool without solutions.
func (h *HackSystem) Catalog() []hack.Challenge {
	out := make([]hack.Challenge, len(h.pool))
	for i, c := range h.pool {
		out[i] = c.Public()
	}
	return out
}

// Roll decides whether a hack fires for this battle and stores the attempt if so.
// It returns nil when nothing triggered.
func (h *HackSystem) Roll(ctx context.Context, battleID string, userID int, cond weather.Condition, sides ...[][]element.Type) (*TriggeredHack, error) {
	p := hack.Probability(cond, sides...)
	if h.store == nil || len(h.pool) == 0 || !hack.ShouldTrigger(p, h.dice) {
		return nil, nil
	}

	c := h.pool[h.dice.IntN(len(h.pool))]
	a := hack.Attempt{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		ChallengeID: c.ID,
		UserID:      userID,
		Probability: p,
		CreatedAt:   h.now(),
	}
	if err := h.store.CreateAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("store hack attempt: %w", err)
	}

	h.metrics.RecordHackTriggered()
	h.eventLog.Append(events.NewEvent(events.EventTypeHackTriggered, battleID, userID, 0, map[string]interface{}{
		"battle_hack_id": a.ID,
		"hack_id":        c.ID,
		"probability":    p,
	}))
	h.logger.Event("HACK_TRIGGERED", fmt.Sprint(userID), fmt.Sprintf("battle %s, challenge %d at %.0f%%", battleID, c.ID, p))

	return &TriggeredHack{Attempt: a, Challenge: c.Public(), Probability: p}, nil
}

// Submit grades an answer. Attempts of other users look missing.
func (h *HackSystem) Submit(ctx context.Context, userID int, attemptID, answer string) (hack.Result, error) {
	if h.store == nil {
		return hack.Result{}, apperrors.NotFound("hack not found")
	}
	a, err := h.store.Attempt(ctx, attemptID)
	if err != nil {
		return hack.Result{}, err
	}
	if a.UserID != userID {
		return hack.Result{}, apperrors.NotFound("hack not found")
	}
	// A solved attempt is final: resubmitting is rejected, not penalised.
	if a.Solved {
		return hack.Result{}, apperrors.RuleViolation("hack already solved")
	}
	c, ok := h.byID[a.ChallengeID]
	if !ok {
		return hack.Result{}, apperrors.NotFound("hack not found")
	}

	correct := c.Matches(answer)
	if err := h.store.SaveSubmission(ctx, a.ID, answer, correct, h.now()); err != nil {
		return hack.Result{}, fmt.Errorf("save hack submission: %w", err)
	}
	h.metrics.RecordHackSubmission(correct)

	res := hack.Result{Correct: correct}
	if !correct {
		p := hack.PenaltyFor(c.Difficulty)
		res.Penalty = &p
	}
	h.eventLog.Append(events.NewEvent(events.EventTypeHackSubmitted, a.BattleID, userID, 0, res))
	return res, nil
}

// Pending lists a user's unsolved attempts with their challenges.
func (h *HackSystem) Pending(ctx context.Context, userID int) ([]PendingHack, error) {
	if h.store == nil {
		return []PendingHack{}, nil
	}
	attempts, err := h.store.PendingAttempts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending hacks: %w", err)
	}
	out := make([]PendingHack, 0, len(attempts))
	for _, a := range attempts {
		c, ok := h.byID[a.ChallengeID]
		if !ok {
			continue
		}
		out = append(out, PendingHack{Attempt: a, Challenge: c.Public()})
	}
	return out, nil
}

// Stats summarises a user's attempts.
func (h *HackSystem) Stats(ctx context.Context, userID int) (hack.Stats, error) {
	if h.store == nil {
		return hack.NewStats(0, 0, 0), nil
	}
	total, solved, failed, err := h.store.AttemptCounts(ctx, userID)
	if err != nil {
		return hack.Stats{}, fmt.Errorf("load hack stats: %w", err)
	}
	return hack.NewStats(total, solved, failed), nil
}
