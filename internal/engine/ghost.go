package engine

import (
	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
)

// MaxGhostTurns caps an offline battle so degenerate matchups still terminate.
const MaxGhostTurns = 100

// GhostCombatant identifies a combatant in the offline log.
type GhostCombatant struct {
	ID    int            `json:"id"`
	Name  string         `json:"name"`
	Types []element.Type `json:"types"`
}

// GhostAction is one side's part of an exchange.
type GhostAction struct {
	Pokemon   GhostCombatant `json:"pokemon"`
	HP        int            `json:"hp"`
	Damage    int            `json:"damage"`
	IsFainted bool           `json:"isFainted"`
}

// GhostTurn is one exchange of the offline battle.
type GhostTurn struct {
	Turn     int         `json:"turn"`
	Attacker GhostAction `json:"attacker"`
	Defender GhostAction `json:"defender"`
	Weather  string      `json:"weather"`
	battle.Remaining
}

// GhostSummary is the outcome of an offline battle.
type GhostSummary struct {
	TotalTurns      int    `json:"total_turns"`
	AttackerFainted int    `json:"attacker_pokemons_fainted"`
	DefenderFainted int    `json:"defender_pokemons_fainted"`
	Winner          string `json:"winner"` // attacker, defender or draw
}

// GhostLog is the full record of an offline battle.
type GhostLog struct {
	Turns   []GhostTurn  `json:"turns"`
	Summary GhostSummary `json:"summary"`
}

func ghostAction(c *combatant.Combatant) GhostAction {
	return GhostAction{
		Pokemon: GhostCombatant{ID: c.SpeciesID, Name: c.Name, Types: c.Types},
		HP:      c.CurrentHP,
	}
}

// ResolveGhost plays out a battle between two rosters without interaction.
// Each exchange uses the default attack; the faster side strikes first, ties
// going to the attacker, and a KO on the first strike ends the exchange.
// The rosters are copied, never mutated.
func ResolveGhost(calc *Calculator, attackerRoster, defenderRoster combatant.Roster, cond weather.Condition) GhostLog {
	att := attackerRoster.Clone()
	def := defenderRoster.Clone()
	desc := weather.Describe(cond)

	var log GhostLog
	attFainted, defFainted := 0, 0

	for turn := 1; turn <= MaxGhostTurns; turn++ {
		if att.AllFainted() || def.AllFainted() {
			break
		}
		a, d := att.Active(), def.Active()
		first, second := a, d
		attackerFirst := a.Stats.Speed >= d.Stats.Speed
		if !attackerFirst {
			first, second = d, a
		}

		firstAct, secondAct := ghostAction(first), ghostAction(second)
		firstAct.Damage = calc.Compute(first, second, cond, DefaultMovePower, "")
		_, after := second.ApplyDamage(firstAct.Damage)
		if after == 0 {
			secondAct.IsFainted = true
		} else {
			secondAct.Damage = calc.Compute(second, first, cond, DefaultMovePower, "")
			first.ApplyDamage(secondAct.Damage)
			firstAct.IsFainted = first.Fainted()
		}
		firstAct.HP, secondAct.HP = first.CurrentHP, second.CurrentHP

		attAct, defAct := firstAct, secondAct
		if !attackerFirst {
			attAct, defAct = secondAct, firstAct
		}
		if attAct.IsFainted {
			attFainted++
			if i, ok := att.FirstLiving(); ok {
				att.SetActive(i)
			}
		}
		if defAct.IsFainted {
			defFainted++
			if i, ok := def.FirstLiving(); ok {
				def.SetActive(i)
			}
		}

		log.Turns = append(log.Turns, GhostTurn{
			Turn:     turn,
			Attacker: attAct,
			Defender: defAct,
			Weather:  desc,
			Remaining: battle.Remaining{
				AttackerRemaining: att.Living(),
				DefenderRemaining: def.Living(),
			},
		})
	}

	log.Summary = GhostSummary{
		TotalTurns:      len(log.Turns),
		AttackerFainted: attFainted,
		DefenderFainted: defFainted,
		Winner:          "draw",
	}
	switch {
	case att.AllFainted():
		log.Summary.Winner = "defender"
	case def.AllFainted():
		log.Summary.Winner = "attacker"
	}
	return log
}
