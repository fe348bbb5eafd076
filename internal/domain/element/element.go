// Package element defines the elemental types and the fixed effectiveness chart.
// This package is PURE and must NOT import any infrastructure packages.
package element

import "strings"

// Type is an elemental type of a combatant or a move.
type Type string

const (
	Normal   Type = "normal"
	Fire     Type = "fire"
	Water    Type = "water"
	Grass    Type = "grass"
	Electric Type = "electric"
	Ice      Type = "ice"
	Fighting Type = "fighting"
	Poison   Type = "poison"
	Ground   Type = "ground"
	Flying   Type = "flying"
	Psychic  Type = "psychic"
	Bug      Type = "bug"
	Rock     Type = "rock"
	Ghost    Type = "ghost"
	Dragon   Type = "dragon"
	Dark     Type = "dark"
	Steel    Type = "steel"
	Fairy    Type = "fairy"
)

const (
	// StrongMultiplier applies when the attacking type is strong against the defending type.
	StrongMultiplier = 2.0
	// WeakMultiplier applies when the attacking type is weak against the defending type.
	WeakMultiplier = 0.5
)

type matchup struct {
	strong []Type
	weak   []Type
}

var chart = map[Type]matchup{
	Fire:     {strong: []Type{Grass, Ice, Bug, Steel}, weak: []Type{Water, Rock, Dragon}},
	Water:    {strong: []Type{Fire, Ground, Rock}, weak: []Type{Grass, Electric, Dragon}},
	Grass:    {strong: []Type{Water, Ground, Rock}, weak: []Type{Fire, Ice, Poison, Flying, Bug}},
	Electric: {strong: []Type{Water, Flying}, weak: []Type{Grass, Electric, Dragon}},
	Ice:      {strong: []Type{Grass, Ground, Flying, Dragon}, weak: []Type{Fire, Fighting, Rock, Steel}},
	Fighting: {strong: []Type{Normal, Ice, Rock, Dark, Steel}, weak: []Type{Flying, Psychic, Fairy}},
	Poison:   {strong: []Type{Grass, Fairy}, weak: []Type{Poison, Ground, Rock, Ghost}},
	Ground:   {strong: []Type{Fire, Electric, Poison, Rock, Steel}, weak: []Type{Grass, Bug}},
	Flying:   {strong: []Type{Grass, Fighting, Bug}, weak: []Type{Electric, Ice, Rock}},
	Psychic:  {strong: []Type{Fighting, Poison}, weak: []Type{Bug, Ghost, Dark}},
	Bug:      {strong: []Type{Grass, Psychic, Dark}, weak: []Type{Fire, Flying, Rock}},
	Rock:     {strong: []Type{Fire, Ice, Flying, Bug}, weak: []Type{Water, Grass, Fighting, Ground, Steel}},
	Ghost:    {strong: []Type{Psychic, Ghost}, weak: []Type{Ghost, Dark}},
	Dragon:   {strong: []Type{Dragon}, weak: []Type{Ice, Dragon, Fairy}},
	Dark:     {strong: []Type{Psychic, Ghost}, weak: []Type{Fighting, Bug, Fairy}},
	Steel:    {strong: []Type{Ice, Rock, Fairy}, weak: []Type{Fire, Fighting, Ground}},
	Fairy:    {strong: []Type{Fighting, Dragon, Dark}, weak: []Type{Poison, Steel}},
	Normal:   {strong: nil, weak: []Type{Fighting}},
}

// All returns every known type in chart order.
func All() []Type {
	return []Type{Normal, Fire, Water, Grass, Electric, Ice, Fighting, Poison, Ground,
		Flying, Psychic, Bug, Rock, Ghost, Dragon, Dark, Steel, Fairy}
}

// Parse converts a provider label into a Type.
func Parse(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	_, ok := chart[t]
	return t, ok
}

// Against returns the multiplier of one attacking type on one defending type.
// Strong is checked before weak.
func Against(attacking, defending Type) float64 {
	m, ok := chart[attacking]
	if !ok {
		return 1.0
	}
	if contains(m.strong, defending) {
		return StrongMultiplier
	}
	if contains(m.weak, defending) {
		return WeakMultiplier
	}
	return 1.0
}

// Effectiveness multiplies Against over every attacking/defending pair.
func Effectiveness(attacking, defending []Type) float64 {
	multiplier := 1.0
	for _, a := range attacking {
		for _, d := range defending {
			multiplier *= Against(a, d)
		}
	}
	return multiplier
}

// Contains reports whether t is one of types.
func Contains(types []Type, t Type) bool {
	return contains(types, t)
}

func contains(types []Type, t Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
