// Package weather defines weather conditions and their effect on element types.
// This package is PURE and must NOT import any infrastructure packages.
package weather

import (
	"strings"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
)

// Condition is the weather at the battle location. It is fixed for a session.
type Condition string

const (
	Clear        Condition = "clear"
	Rain         Condition = "rain"
	Snow         Condition = "snow"
	Clouds       Condition = "clouds"
	Thunderstorm Condition = "thunderstorm"
	Drizzle      Condition = "drizzle"
	Unknown      Condition = "unknown"
)

// DefaultMultiplier is the buff applied to favoured types; nerfed types get its reciprocal.
const DefaultMultiplier = 1.2

// Effect lists the types a condition favours and hinders.
type Effect struct {
	Buffed     []element.Type `json:"buffed_types"`
	Nerfed     []element.Type `json:"nerfed_types"`
	Multiplier float64        `json:"multiplier"`
}

var effects = map[Condition]Effect{
	Rain:         {Buffed: []element.Type{element.Water}, Nerfed: []element.Type{element.Fire}, Multiplier: DefaultMultiplier},
	Drizzle:      {Buffed: []element.Type{element.Water}, Nerfed: []element.Type{element.Fire}, Multiplier: DefaultMultiplier},
	Thunderstorm: {Buffed: []element.Type{element.Water, element.Electric}, Nerfed: []element.Type{element.Fire}, Multiplier: DefaultMultiplier},
	Clear:        {Buffed: []element.Type{element.Fire}, Nerfed: []element.Type{element.Ice}, Multiplier: DefaultMultiplier},
	Snow:         {Buffed: []element.Type{element.Ice}, Nerfed: []element.Type{element.Grass, element.Ground}, Multiplier: DefaultMultiplier},
	Clouds:       {Multiplier: 1.0},
	Unknown:      {Multiplier: 1.0},
}

var descriptions = map[Condition]string{
	Clear:        "☀️ Sunny",
	Rain:         "🌧️ Rain",
	Snow:         "❄️ Snow",
	Clouds:       "☁️ Cloudy",
	Thunderstorm: "⛈️ Thunderstorm",
	Drizzle:      "🌦️ Drizzle",
	Unknown:      "🌍 Normal",
}

// Effects returns the effect table entry. Unmapped conditions are neutral.
func Effects(c Condition) Effect {
	if e, ok := effects[c]; ok {
		return e
	}
	return Effect{Multiplier: 1.0}
}

// Multiplier returns the damage multiplier for an attacker with the given types.
// A buffed type wins over a nerfed one.
func Multiplier(c Condition, types []element.Type) float64 {
	e := Effects(c)
	for _, t := range types {
		if element.Contains(e.Buffed, t) {
			return e.Multiplier
		}
	}
	for _, t := range types {
		if element.Contains(e.Nerfed, t) {
			return 1 / e.Multiplier
		}
	}
	return 1.0
}

// IsNerfed reports whether a combatant with these types is hindered by the weather.
func IsNerfed(c Condition, types []element.Type) bool {
	return Multiplier(c, types) < 1
}

// FromProvider maps a provider's "main" label (e.g. "Rain") to a Condition.
func FromProvider(main string) Condition {
	switch c := Condition(strings.ToLower(strings.TrimSpace(main))); c {
	case Clear, Rain, Snow, Clouds, Thunderstorm, Drizzle:
		return c
	default:
		return Unknown
	}
}

// Describe returns a short label used in offline battle logs.
func Describe(c Condition) string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[Unknown]
}

// Report is what a weather provider returns for a location.
type Report struct {
	Condition    Condition `json:"condition"`
	TemperatureC int       `json:"temperature"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
}

// DefaultReport is used whenever the provider cannot answer.
func DefaultReport() Report {
	return Report{
		Condition:    Clear,
		TemperatureC: 20,
		Description:  "Default weather",
		Location:     "Unknown",
	}
}
