package engine

import (
	"encoding/json"
	"testing"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
)

func TestGhostStrongerSideWins(t *testing.T) {
	strong := mustRoster(t,
		fighter("mewtwo", []element.Type{element.Psychic}, 300, 300, 150, 130),
	)
	weak := mustRoster(t,
		fighter("caterpie", []element.Type{element.Bug}, 20, 10, 10, 10),
		fighter("weedle", []element.Type{element.Bug}, 20, 10, 10, 10),
		fighter("metapod", []element.Type{element.Bug}, 20, 10, 10, 10),
	)
	calc := NewCalculator(NewDice(11))

	log := ResolveGhost(calc, strong, weak, weather.Clouds)
	if log.Summary.Winner != "attacker" {
		t.Fatalf("Expected attacker to win, got %s", log.Summary.Winner)
	}
	if log.Summary.DefenderFainted != 3 || log.Summary.AttackerFainted != 0 {
		t.Errorf("Expected 0 vs 3 fainted, got %+v", log.Summary)
	}
	if log.Summary.TotalTurns != 3 {
		t.Errorf("Expected one KO per exchange, got %d turns", log.Summary.TotalTurns)
	}
	for _, turn := range log.Turns {
		if turn.Defender.Damage != 0 {
			t.Errorf("Expected no counter-attack after a first-strike KO on turn %d", turn.Turn)
		}
	}
	last := log.Turns[len(log.Turns)-1]
	if last.DefenderRemaining != 0 || last.AttackerRemaining != 1 {
		t.Errorf("Expected final remaining 1 vs 0, got %+v", last.Remaining)
	}

	// Input rosters stay untouched.
	if weak.Active().CurrentHP != 20 {
		t.Errorf("Expected the input roster to be copied")
	}
}

func TestGhostDefenderCanWin(t *testing.T) {
	weak := mustRoster(t, fighter("rattata", []element.Type{element.Normal}, 10, 10, 10, 200))
	strong := mustRoster(t, fighter("onix", []element.Type{element.Rock}, 500, 200, 200, 1))

	log := ResolveGhost(NewCalculator(NewDice(2)), weak, strong, weather.Clouds)
	if log.Summary.Winner != "defender" {
		t.Errorf("Expected defender to win, got %s", log.Summary.Winner)
	}
}

func TestGhostDrawsOnlyAtCap(t *testing.T) {
	// Two walls that barely scratch each other never finish within the cap.
	a := mustRoster(t, fighter("shuckle", []element.Type{element.Bug}, 60000, 1, 999, 5))
	b := mustRoster(t, fighter("chansey", []element.Type{element.Normal}, 60000, 1, 999, 5))

	log := ResolveGhost(NewCalculator(NewDice(3)), a, b, weather.Clouds)
	if log.Summary.Winner != "draw" {
		t.Errorf("Expected draw, got %s", log.Summary.Winner)
	}
	if log.Summary.TotalTurns != MaxGhostTurns {
		t.Errorf("Expected %d turns, got %d", MaxGhostTurns, log.Summary.TotalTurns)
	}
}

func TestGhostLogSummarizesForHistory(t *testing.T) {
	a := mustRoster(t, fighter("a", []element.Type{element.Fire}, 300, 300, 100, 100))
	b := mustRoster(t, fighter("b", []element.Type{element.Grass}, 10, 10, 10, 10))

	log := ResolveGhost(NewCalculator(NewDice(4)), a, b, weather.Clear)
	raw, err := json.Marshal(log)
	if err != nil {
		t.Fatal(err)
	}
	s, err := battle.Summarize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.Turns != log.Summary.TotalTurns || s.Final.DefenderRemaining != 0 {
		t.Errorf("Expected history summary to match the log, got %+v", s)
	}
	if log.Turns[0].Weather != weather.Describe(weather.Clear) {
		t.Errorf("Expected weather description on each turn")
	}
}
