// Package gamedata embeds the static data files shipped with the server:
// the hack challenge pool and the offline species catalog.
package gamedata

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
)

//go:embed challenges.yaml
var challengesYAML []byte

//go:embed species.yaml
var speciesYAML []byte

type challengeFile struct {
	Challenges []hack.Challenge `yaml:"challenges"`
}

type speciesFile struct {
	Species []combatant.Species `yaml:"species"`
}

// Challenges parses the embedded hack pool.
func Challenges() ([]hack.Challenge, error) {
	return ParseChallenges(challengesYAML)
}

// ParseChallenges decodes a challenge pool and checks every entry is usable.
func ParseChallenges(data []byte) ([]hack.Challenge, error) {
	var f challengeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode challenges: %w", err)
	}
	if len(f.Challenges) == 0 {
		return nil, fmt.Errorf("challenge pool is empty")
	}
	seen := make(map[int]bool, len(f.Challenges))
	for _, c := range f.Challenges {
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate challenge id %d", c.ID)
		}
		seen[c.ID] = true
		if c.Solution == "" {
			return nil, fmt.Errorf("challenge %d has no solution", c.ID)
		}
		switch c.Difficulty {
		case hack.Easy, hack.Medium, hack.Hard, hack.VeryHard:
		default:
			return nil, fmt.Errorf("challenge %d has unknown difficulty %q", c.ID, c.Difficulty)
		}
	}
	return f.Challenges, nil
}

// Species parses the embedded catalog, sorted by id.
func Species() ([]combatant.Species, error) {
	return ParseSpecies(speciesYAML)
}

// ParseSpecies decodes a species catalog.
func ParseSpecies(data []byte) ([]combatant.Species, error) {
	var f speciesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode species: %w", err)
	}
	if len(f.Species) == 0 {
		return nil, fmt.Errorf("species catalog is empty")
	}
	for _, sp := range f.Species {
		if len(sp.Types) == 0 || len(sp.Types) > 2 {
			return nil, fmt.Errorf("species %s must have one or two types", sp.Name)
		}
		for _, t := range sp.Types {
			if _, ok := element.Parse(string(t)); !ok {
				return nil, fmt.Errorf("species %s has unknown type %q", sp.Name, t)
			}
		}
		if len(sp.Moves) > combatant.MaxMoves {
			return nil, fmt.Errorf("species %s has more than %d moves", sp.Name, combatant.MaxMoves)
		}
	}
	sort.Slice(f.Species, func(i, j int) bool { return f.Species[i].ID < f.Species[j].ID })
	return f.Species, nil
}
