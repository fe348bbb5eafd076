// Package roster joins stored teams with species data for the engine.
package roster

import (
	"context"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
)

// TeamReader returns a trainer's active team.
type TeamReader interface {
	ActiveTeam(ctx context.Context, trainerID int) (combatant.Team, error)
}

// SpeciesSource resolves species by id.
type SpeciesSource interface {
	Species(ctx context.Context, id int) (combatant.Species, error)
}

// Provider implements engine.RosterProvider.
type Provider struct {
	teams   TeamReader
	species SpeciesSource
}

// NewProvider creates a roster provider. species is usually a cache.SpeciesCache.
func NewProvider(teams TeamReader, species SpeciesSource) *Provider {
	return &Provider{teams: teams, species: species}
}

func (p *Provider) ActiveTeam(ctx context.Context, trainerID int) (combatant.Team, error) {
	return p.teams.ActiveTeam(ctx, trainerID)
}

func (p *Provider) Species(ctx context.Context, id int) (combatant.Species, error) {
	return p.species.Species(ctx, id)
}
