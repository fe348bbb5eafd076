// Package combatant defines the creatures that fight in a battle and the rosters holding them.
// This package is PURE and must NOT import any infrastructure packages.
package combatant

import (
	"errors"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
)

const (
	// MaxMoves is the number of moves a combatant can carry into battle.
	MaxMoves = 4
	// MaxRosterSize is the largest team a side can field.
	MaxRosterSize = 6
)

// Stats are the immutable base values of a species.
type Stats struct {
	HP             int `json:"hp" yaml:"hp"`
	Attack         int `json:"attack" yaml:"attack"`
	Defense        int `json:"defense" yaml:"defense"`
	SpecialAttack  int `json:"special_attack" yaml:"special_attack"`
	SpecialDefense int `json:"special_defense" yaml:"special_defense"`
	Speed          int `json:"speed" yaml:"speed"`
}

// Move is an attack a combatant can select.
type Move struct {
	Name      string       `json:"name" yaml:"name"`
	Type      element.Type `json:"type" yaml:"type"`
	Power     int          `json:"power" yaml:"power"`
	Accuracy  int          `json:"accuracy" yaml:"accuracy"`
	PP        int          `json:"pp" yaml:"pp"`
	CurrentPP int          `json:"current_pp" yaml:"-"`
}

// Usable reports whether the move still has uses left.
func (m Move) Usable() bool {
	return m.CurrentPP > 0
}

// Species is the provider's description of a creature.
type Species struct {
	ID     int            `json:"id" yaml:"id"`
	Name   string         `json:"name" yaml:"name"`
	Types  []element.Type `json:"types" yaml:"types"`
	Stats  Stats          `json:"stats" yaml:"stats"`
	Sprite string         `json:"sprite" yaml:"sprite"`
	Moves  []Move         `json:"moves" yaml:"moves"`
}

// Combatant is one creature inside a battle.
type Combatant struct {
	ID        int            `json:"id"` // Slot identity, unique within its roster
	SpeciesID int            `json:"pokemon_id"`
	Name      string         `json:"name"`
	Types     []element.Type `json:"types"`
	Stats     Stats          `json:"stats"`
	CurrentHP int            `json:"current_hp"`
	MaxHP     int            `json:"max_hp"`
	Sprite    string         `json:"sprite"`
	Moves     []Move         `json:"moves"`
}

// New builds a fresh combatant at full HP with full PP.
func New(slotID int, sp Species) Combatant {
	moves := make([]Move, 0, MaxMoves)
	for i, m := range sp.Moves {
		if i == MaxMoves {
			break
		}
		m.CurrentPP = m.PP
		moves = append(moves, m)
	}
	return Combatant{
		ID:        slotID,
		SpeciesID: sp.ID,
		Name:      sp.Name,
		Types:     append([]element.Type(nil), sp.Types...),
		Stats:     sp.Stats,
		CurrentHP: sp.Stats.HP,
		MaxHP:     sp.Stats.HP,
		Sprite:    sp.Sprite,
		Moves:     moves,
	}
}

// Fainted reports whether the combatant is out of the fight.
func (c *Combatant) Fainted() bool {
	return c.CurrentHP == 0
}

// ApplyDamage lowers HP, clamped at zero.
func (c *Combatant) ApplyDamage(n int) (before, after int) {
	before = c.CurrentHP
	c.CurrentHP -= n
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
	return before, c.CurrentHP
}

// UsableMoves returns the indices of moves with PP left.
func (c *Combatant) UsableMoves() []int {
	var idx []int
	for i, m := range c.Moves {
		if m.Usable() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a copy that shares no slices with c.
func (c Combatant) Clone() Combatant {
	c.Types = append([]element.Type(nil), c.Types...)
	c.Moves = append([]Move(nil), c.Moves...)
	return c
}

var (
	ErrEmptyRoster    = errors.New("roster is empty")
	ErrRosterTooLarge = errors.New("roster has more than 6 members")
)

// Roster owns the combatants of one side. The active combatant is an index, never a copy.
type Roster struct {
	Members []Combatant `json:"members"`
	active  int
}

// NewRoster builds a roster with slot ids 1..n, the first member active.
func NewRoster(species []Species) (Roster, error) {
	if len(species) == 0 {
		return Roster{}, ErrEmptyRoster
	}
	if len(species) > MaxRosterSize {
		return Roster{}, ErrRosterTooLarge
	}
	members := make([]Combatant, len(species))
	for i, sp := range species {
		members[i] = New(i+1, sp)
	}
	return Roster{Members: members}, nil
}

// Active returns a pointer to the active member for in-place mutation.
func (r *Roster) Active() *Combatant {
	return &r.Members[r.active]
}

// ActiveIndex returns the index of the active member.
func (r *Roster) ActiveIndex() int {
	return r.active
}

// SetActive makes member i the active one.
func (r *Roster) SetActive(i int) {
	r.active = i
}

// Find returns the index of the member with the given slot id.
func (r *Roster) Find(slotID int) (int, bool) {
	for i := range r.Members {
		if r.Members[i].ID == slotID {
			return i, true
		}
	}
	return -1, false
}

// FirstLiving returns the first member in roster order that has not fainted.
func (r *Roster) FirstLiving() (int, bool) {
	for i := range r.Members {
		if !r.Members[i].Fainted() {
			return i, true
		}
	}
	return -1, false
}

// Living counts members still able to fight.
func (r *Roster) Living() int {
	n := 0
	for i := range r.Members {
		if !r.Members[i].Fainted() {
			n++
		}
	}
	return n
}

// AllFainted reports whether the side has lost.
func (r *Roster) AllFainted() bool {
	return r.Living() == 0
}

// Types returns the type list of every member, in roster order.
func (r *Roster) Types() [][]element.Type {
	out := make([][]element.Type, len(r.Members))
	for i := range r.Members {
		out[i] = r.Members[i].Types
	}
	return out
}

// Clone returns a deep copy.
func (r Roster) Clone() Roster {
	members := make([]Combatant, len(r.Members))
	for i := range r.Members {
		members[i] = r.Members[i].Clone()
	}
	return Roster{Members: members, active: r.active}
}

// Team is a trainer's saved lineup, as read from storage.
type Team struct {
	ID         int64  `json:"id"`
	TrainerID  int    `json:"user_id"`
	Name       string `json:"team_name"`
	Active     bool   `json:"is_active"`
	SpeciesIDs []int  `json:"pokemon_ids"` // In slot order
}
