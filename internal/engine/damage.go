package engine

import (
	"math"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
)

const (
	// Level is the fixed level every combatant fights at.
	Level = 50
	// DefaultMovePower is used when a combatant attacks without a move.
	DefaultMovePower = 50
	// STABMultiplier rewards a move that shares a type with its user.
	STABMultiplier = 1.5

	minRandomFactor = 0.85
	randomSpread    = 0.15
)

// Calculator computes damage for one hit.
type Calculator struct {
	dice *Dice
}

// NewCalculator creates a calculator rolling on the given dice.
func NewCalculator(d *Dice) *Calculator {
	return &Calculator{dice: d}
}

// Compute returns the damage attacker deals to defender.
// An empty moveType means a typeless attack: effectiveness uses the attacker's
// own types and STAB always applies.
func (c *Calculator) Compute(attacker, defender *combatant.Combatant, cond weather.Condition, power int, moveType element.Type) int {
	defense := defender.Stats.Defense
	if defense <= 0 {
		defense = 1
	}
	base := math.Floor((float64(2*Level/5+2)*float64(attacker.Stats.Attack)*float64(power)/float64(defense))/50 + 2)

	attacking := attacker.Types
	stab := 1.0
	if moveType != "" {
		attacking = []element.Type{moveType}
		if element.Contains(attacker.Types, moveType) {
			stab = STABMultiplier
		}
	} else {
		stab = STABMultiplier
	}

	random := minRandomFactor + c.dice.Float64()*randomSpread
	total := base *
		weather.Multiplier(cond, attacker.Types) *
		element.Effectiveness(attacking, defender.Types) *
		random *
		stab

	dmg := int(math.Floor(total))
	if dmg < 1 {
		return 1
	}
	return dmg
}
