package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
)

// DefaultHistoryLimit is used when a caller asks for no limit.
const DefaultHistoryLimit = 20

// statsScanLimit bounds the rows folded into Stats.
const statsScanLimit = 10000

// History derives trainer-facing views from stored battles.
// State = f(records): nothing beyond the battles table is consulted.
type History struct {
	battles BattleRepository
	now     func() time.Time
}

// NewHistory creates a history reader over the battle repository.
func NewHistory(battles BattleRepository) *History {
	return &History{battles: battles, now: time.Now}
}

// Entries returns the trainer's most recent battles, newest first.
func (h *History) Entries(ctx context.Context, userID, limit int) ([]battle.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	records, err := h.battles.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}

	entries := make([]battle.HistoryEntry, 0, len(records))
	now := h.now()
	for _, r := range records {
		// A malformed log still yields an entry; only the counters go missing.
		s, _ := battle.Summarize(rawLog(r.Log))
		e := battle.NewHistoryEntry(userID, r, s)
		e.RelativeDate = humanize.RelTime(r.CreatedAt, now, "ago", "from now")
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats folds every stored battle of the trainer into win/loss/draw totals.
func (h *History) Stats(ctx context.Context, userID int) (battle.Stats, error) {
	var stats battle.Stats
	records, err := h.battles.ListByUser(ctx, userID, statsScanLimit)
	if err != nil {
		return stats, fmt.Errorf("failed to list battles: %w", err)
	}
	for _, r := range records {
		stats.Add(battle.OutcomeFor(userID, r.WinnerID, r.Ghost))
	}
	return stats, nil
}

func rawLog(v interface{}) []byte {
	switch l := v.(type) {
	case json.RawMessage:
		return l
	case []byte:
		return l
	case string:
		return []byte(l)
	}
	b, _ := json.Marshal(v)
	return b
}
