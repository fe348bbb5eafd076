// Package battle holds the persisted shape of a finished battle and the rules
// used to read it back as history.
// This package is PURE and must NOT import any infrastructure packages.
package battle

import (
	"encoding/json"
	"time"
)

// SecondsPerTurn is the nominal duration reported for each turn in history.
const SecondsPerTurn = 5

// Remaining is the number of living combatants per side after a turn.
type Remaining struct {
	AttackerRemaining int `json:"attacker_pokemon_remaining"`
	DefenderRemaining int `json:"defender_pokemon_remaining"`
}

// SessionLog is the battle_log written for an interactive battle.
type SessionLog struct {
	BattleID string      `json:"battle_id"`
	Turn     int         `json:"turn"`
	Weather  string      `json:"weather"`
	Logs     []string    `json:"logs"`
	Turns    []Remaining `json:"turns"`
}

// Record is one row of the battles table.
type Record struct {
	ID             int64       `json:"id"`
	AttackerID     int         `json:"attacker_id"`
	DefenderID     int         `json:"defender_id"`
	AttackerTeamID int64       `json:"attacker_team_id"`
	DefenderTeamID int64       `json:"defender_team_id"`
	WinnerID       *int        `json:"winner_id"` // nil when the automated opponent won, or on a draw
	Log            interface{} `json:"battle_log"`
	Ghost          bool        `json:"is_ghost_battle"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Outcome is a battle result from one trainer's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

// OutcomeFor applies the history rules: a nil winner is a loss for automated
// and ghost battles, and a draw otherwise.
func OutcomeFor(userID int, winnerID *int, ghost bool) Outcome {
	switch {
	case winnerID != nil && *winnerID == userID:
		return Win
	case winnerID == nil && ghost:
		return Loss
	case winnerID == nil:
		return Draw
	default:
		return Loss
	}
}

// Summary is what history needs from a stored battle_log.
type Summary struct {
	Turns    int
	Final    Remaining
	HasFinal bool
}

// Summarize reads the turn count and the last remaining counts from a stored log.
// Interactive logs carry an explicit turn counter; ghost logs only a turn list.
func Summarize(raw []byte) (Summary, error) {
	var doc struct {
		Turn  int         `json:"turn"`
		Turns []Remaining `json:"turns"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Summary{}, err
	}
	s := Summary{Turns: doc.Turn}
	if s.Turns == 0 {
		s.Turns = len(doc.Turns)
	}
	if n := len(doc.Turns); n > 0 {
		s.Final = doc.Turns[n-1]
		s.HasFinal = true
	}
	return s, nil
}

// HistoryEntry is one line of a trainer's battle history.
type HistoryEntry struct {
	ID                int64     `json:"id"`
	Date              time.Time `json:"date"`
	RelativeDate      string    `json:"relative_date"`
	OpponentType      string    `json:"opponent_type"` // "ai" or "friend"
	Result            Outcome   `json:"result"`
	DurationSeconds   int       `json:"duration_seconds"`
	YourRemaining     int       `json:"your_pokemon_remaining"`
	OpponentRemaining int       `json:"opponent_pokemon_remaining"`
}

// NewHistoryEntry derives an entry from a stored record for the given trainer.
func NewHistoryEntry(userID int, r Record, s Summary) HistoryEntry {
	e := HistoryEntry{
		ID:              r.ID,
		Date:            r.CreatedAt,
		OpponentType:    "friend",
		Result:          OutcomeFor(userID, r.WinnerID, r.Ghost),
		DurationSeconds: s.Turns * SecondsPerTurn,
	}
	if r.Ghost {
		e.OpponentType = "ai"
	}
	if s.HasFinal {
		if r.AttackerID == userID {
			e.YourRemaining, e.OpponentRemaining = s.Final.AttackerRemaining, s.Final.DefenderRemaining
		} else {
			e.YourRemaining, e.OpponentRemaining = s.Final.DefenderRemaining, s.Final.AttackerRemaining
		}
	}
	return e
}

// Stats counts outcomes for a trainer.
type Stats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// Add folds one outcome into the totals.
func (s *Stats) Add(o Outcome) {
	switch o {
	case Win:
		s.Wins++
	case Loss:
		s.Losses++
	case Draw:
		s.Draws++
	}
}
