package weather

import (
	"math"
	"testing"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
)

func TestEffectsTable(t *testing.T) {
	e := Effects(Thunderstorm)
	if len(e.Buffed) != 2 || e.Multiplier != 1.2 {
		t.Errorf("Expected thunderstorm to buff 2 types at 1.2, got %+v", e)
	}

	for _, c := range []Condition{Clouds, Unknown, Condition("sandstorm")} {
		e := Effects(c)
		if len(e.Buffed) != 0 || len(e.Nerfed) != 0 || e.Multiplier != 1.0 {
			t.Errorf("Expected %s to be neutral, got %+v", c, e)
		}
	}
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		name  string
		cond  Condition
		types []element.Type
		want  float64
	}{
		{"fire in clear", Clear, []element.Type{element.Fire}, 1.2},
		{"fire in rain", Rain, []element.Type{element.Fire}, 1 / 1.2},
		{"ice in clear", Clear, []element.Type{element.Ice}, 1 / 1.2},
		{"grass in snow", Snow, []element.Type{element.Grass, element.Poison}, 1 / 1.2},
		{"electric in thunderstorm", Thunderstorm, []element.Type{element.Electric}, 1.2},
		{"normal in rain", Rain, []element.Type{element.Normal}, 1.0},
		{"buff wins over nerf", Clear, []element.Type{element.Ice, element.Fire}, 1.2},
		{"clouds neutral", Clouds, []element.Type{element.Fire}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Multiplier(tt.cond, tt.types); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFromProvider(t *testing.T) {
	cases := map[string]Condition{
		"Rain":         Rain,
		"Clear":        Clear,
		"THUNDERSTORM": Thunderstorm,
		"Mist":         Unknown,
		"":             Unknown,
	}
	for in, want := range cases {
		if got := FromProvider(in); got != want {
			t.Errorf("Expected %q -> %s, got %s", in, want, got)
		}
	}
}

func TestDefaultReportIsClear(t *testing.T) {
	r := DefaultReport()
	if r.Condition != Clear || r.TemperatureC != 20 {
		t.Errorf("Expected clear/20, got %+v", r)
	}
	if Describe(Condition("sandstorm")) != Describe(Unknown) {
		t.Errorf("Expected unmapped description to fall back to unknown")
	}
}
