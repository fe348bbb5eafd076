// Package hack models the side-challenges injected into battles.
// This package is PURE and must NOT import any infrastructure packages.
package hack

import (
	"strings"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
)

// Difficulty is the tier of a challenge.
type Difficulty string

const (
	Easy     Difficulty = "easy"
	Medium   Difficulty = "medium"
	Hard     Difficulty = "hard"
	VeryHard Difficulty = "very_hard"
)

const (
	// BaseProbability is the trigger chance, in percent, before weather pressure.
	BaseProbability = 10.0
	// NerfedBonus is added per combatant weakened by the current weather.
	NerfedBonus = 5.0
)

// Challenge is one entry of the hack pool.
type Challenge struct {
	ID         int        `json:"id" yaml:"id"`
	Code       string     `json:"code" yaml:"code"`
	Category   string     `json:"type" yaml:"category"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Solution   string     `json:"solution,omitempty" yaml:"solution"`
	Hint       string     `json:"description" yaml:"hint"`
}

// Matches compares an answer against the solution, ignoring case.
func (c Challenge) Matches(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), c.Solution)
}

// Public strips the solution so the challenge can be shown to players.
func (c Challenge) Public() Challenge {
	c.Solution = ""
	return c
}

// PenaltyType is what an incorrect answer costs.
type PenaltyType string

const (
	AttackDebuff PenaltyType = "attack_debuff"
	TeamLost     PenaltyType = "team_lost"
)

// Penalty is reported to the player after a wrong answer.
type Penalty struct {
	Type  PenaltyType `json:"type"`
	Value int         `json:"value"`
}

// PenaltyFor maps a difficulty tier to its penalty.
func PenaltyFor(d Difficulty) Penalty {
	switch d {
	case Easy:
		return Penalty{Type: AttackDebuff, Value: 10}
	case Medium:
		return Penalty{Type: AttackDebuff, Value: 20}
	case Hard:
		return Penalty{Type: AttackDebuff, Value: 30}
	case VeryHard:
		return Penalty{Type: TeamLost, Value: 100}
	default:
		return Penalty{Type: AttackDebuff, Value: 15}
	}
}

// Attempt records a triggered hack for one user.
type Attempt struct {
	ID          string     `json:"id"`
	BattleID    string     `json:"battle_id"`
	ChallengeID int        `json:"hack_id"`
	UserID      int        `json:"user_id"`
	Probability float64    `json:"hack_probability"`
	Solved      bool       `json:"is_solved"`
	Answer      string     `json:"user_answer,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
	SolvedAt    *time.Time `json:"solved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Answered reports whether the user has submitted anything yet.
func (a Attempt) Answered() bool {
	return a.AttemptedAt != nil
}

// Result is the outcome of a submission.
type Result struct {
	Correct bool     `json:"is_correct"`
	Penalty *Penalty `json:"penalty,omitempty"`
}

// Stats summarises a user's hack history.
type Stats struct {
	Total       int `json:"total"`
	Solved      int `json:"solved"`
	Failed      int `json:"failed"`
	SuccessRate int `json:"success_rate"`
}

// NewStats computes the rounded success percentage.
func NewStats(total, solved, failed int) Stats {
	s := Stats{Total: total, Solved: solved, Failed: failed}
	if total > 0 {
		s.SuccessRate = int(float64(solved)/float64(total)*100 + 0.5)
	}
	return s
}

// Probability returns the trigger chance in percent for the given sides.
// Every combatant whose types suffer under the weather adds NerfedBonus.
func Probability(c weather.Condition, sides ...[][]element.Type) float64 {
	p := BaseProbability
	for _, side := range sides {
		for _, types := range side {
			if weather.Multiplier(c, types) < 1 {
				p += NerfedBonus
			}
		}
	}
	return p
}

// Roller is the randomness needed to decide a trigger.
type Roller interface {
	Float64() float64
}

// ShouldTrigger rolls against p percent.
func ShouldTrigger(p float64, r Roller) bool {
	return r.Float64()*100 < p
}
