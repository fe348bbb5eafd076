package engine

import (
	"math"
	"testing"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
)

func fighter(name string, types []element.Type, hp, atk, def, spd int) combatant.Species {
	return combatant.Species{
		ID:    len(name),
		Name:  name,
		Types: types,
		Stats: combatant.Stats{HP: hp, Attack: atk, Defense: def, Speed: spd},
		Moves: []combatant.Move{
			{Name: "strike", Type: types[0], Power: 40, Accuracy: 100, PP: 10},
		},
	}
}

func TestDamageBounds(t *testing.T) {
	calc := NewCalculator(NewDice(42))
	a := combatant.New(1, fighter("charmander", []element.Type{element.Fire}, 39, 52, 43, 65))
	d := combatant.New(1, fighter("bulbasaur", []element.Type{element.Grass}, 45, 49, 49, 45))

	// base = floor((22*52*40/49)/50 + 2) = 20
	// clear buffs fire (1.2), fire vs grass (2.0), STAB (1.5)
	base := 20.0
	lo := int(base * 1.2 * 2.0 * 0.85 * 1.5)
	hi := int(base * 1.2 * 2.0 * 1.0 * 1.5)
	for i := 0; i < 200; i++ {
		got := calc.Compute(&a, &d, weather.Clear, 40, element.Fire)
		if got < lo || got > hi {
			t.Fatalf("Expected damage in [%d, %d], got %d", lo, hi, got)
		}
	}
}

func TestDamageNeverBelowOne(t *testing.T) {
	calc := NewCalculator(NewDice(1))
	a := combatant.New(1, fighter("weakling", []element.Type{element.Normal}, 10, 1, 10, 10))
	d := combatant.New(1, fighter("wall", []element.Type{element.Rock, element.Steel}, 10, 10, 999, 10))

	if got := calc.Compute(&a, &d, weather.Clouds, 10, element.Fighting); got < 1 {
		t.Errorf("Expected at least 1 damage, got %d", got)
	}
}

func TestDamageZeroDefenseDoesNotPanic(t *testing.T) {
	calc := NewCalculator(NewDice(1))
	a := combatant.New(1, fighter("a", []element.Type{element.Normal}, 10, 50, 10, 10))
	d := combatant.New(1, fighter("d", []element.Type{element.Normal}, 10, 50, 0, 10))

	if got := calc.Compute(&a, &d, weather.Clouds, DefaultMovePower, ""); got <= 0 {
		t.Errorf("Expected positive damage, got %d", got)
	}
}

func TestDamageIsDeterministicWithSeed(t *testing.T) {
	a := combatant.New(1, fighter("a", []element.Type{element.Water}, 10, 60, 10, 10))
	d := combatant.New(1, fighter("d", []element.Type{element.Fire}, 10, 50, 50, 10))

	first := NewCalculator(NewDice(7))
	second := NewCalculator(NewDice(7))
	for i := 0; i < 20; i++ {
		x := first.Compute(&a, &d, weather.Rain, 40, element.Water)
		y := second.Compute(&a, &d, weather.Rain, 40, element.Water)
		if x != y {
			t.Fatalf("Expected identical rolls for identical seeds, got %d and %d", x, y)
		}
	}
}

func TestTypelessAttackUsesAttackerTypes(t *testing.T) {
	calc := NewCalculator(NewDice(3))
	a := combatant.New(1, fighter("a", []element.Type{element.Water}, 10, 50, 50, 10))
	d := combatant.New(1, fighter("d", []element.Type{element.Fire}, 10, 50, 50, 10))

	// base = floor((22*50*50/50)/50 + 2) = 24; water vs fire 2.0; STAB 1.5
	base := 24.0
	lo := int(base * 2.0 * 0.85 * 1.5)
	got := calc.Compute(&a, &d, weather.Clouds, DefaultMovePower, "")
	if got < lo {
		t.Errorf("Expected at least %d, got %d", lo, got)
	}
}

func TestDamageMatchesFormulaForKnownRoll(t *testing.T) {
	a := combatant.New(1, fighter("charmander", []element.Type{element.Fire}, 39, 52, 43, 65))
	d := combatant.New(1, fighter("bulbasaur", []element.Type{element.Grass}, 45, 49, 49, 45))

	roll := NewDice(11).Float64()
	got := NewCalculator(NewDice(11)).Compute(&a, &d, weather.Clear, 40, element.Fire)

	// base 20, clear 1.2, fire vs grass 2.0, STAB 1.5
	base := 20.0
	want := int(math.Floor(base * weather.Multiplier(weather.Clear, a.Types) * 2.0 * (0.85 + roll*0.15) * 1.5))
	if got != want {
		t.Errorf("Expected %d for roll %.4f, got %d", want, roll, got)
	}
	if m := weather.Multiplier(weather.Clear, a.Types); m != 1.2 {
		t.Errorf("Expected clear to buff fire by 1.2, got %v", m)
	}
}

func TestWeatherBuffOutdamagesNerf(t *testing.T) {
	a := combatant.New(1, fighter("growlithe", []element.Type{element.Fire}, 55, 100, 45, 60))
	d := combatant.New(1, fighter("rattata", []element.Type{element.Normal}, 30, 56, 50, 72))

	sunny := NewCalculator(NewDice(21))
	rainy := NewCalculator(NewDice(21))
	for i := 0; i < 50; i++ {
		sun := sunny.Compute(&a, &d, weather.Clear, 40, element.Fire)
		rain := rainy.Compute(&a, &d, weather.Rain, 40, element.Fire)
		if sun <= rain {
			t.Fatalf("Expected clear damage above rain damage on roll %d, got %d and %d", i, sun, rain)
		}
	}
}
