package pokeapi

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

// StaticSource serves species from a fixed catalog, for offline and dev runs.
// Ids outside the catalog are folded onto it so any id in 1..151 resolves.
type StaticSource struct {
	catalog []combatant.Species
	byID    map[int]int
}

// NewStaticSource wraps a catalog sorted by id.
func NewStaticSource(catalog []combatant.Species) (*StaticSource, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("static species catalog is empty")
	}
	s := &StaticSource{catalog: catalog, byID: make(map[int]int, len(catalog))}
	for i, sp := range catalog {
		s.byID[sp.ID] = i
	}
	return s, nil
}

// Species implements cache.SpeciesSource.
func (s *StaticSource) Species(_ context.Context, id int) (combatant.Species, error) {
	if id <= 0 {
		return combatant.Species{}, apperrors.NotFound(fmt.Sprintf("species %d not found", id))
	}
	i, ok := s.byID[id]
	if !ok {
		i = (id - 1) % len(s.catalog)
	}
	sp := s.catalog[i]
	sp.Types = append(sp.Types[:0:0], sp.Types...)
	sp.Moves = append(sp.Moves[:0:0], sp.Moves...)
	return sp, nil
}
