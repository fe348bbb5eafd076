// Package pokeapi resolves species from PokeAPI, or from the embedded
// catalog when the server runs offline.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
)

const (
	DefaultBaseURL  = "https://pokeapi.co/api/v2"
	DefaultMaxTries = 3

	// MaxLearnLevel bounds the level-up moves a combatant may know.
	MaxLearnLevel = 50
)

// Tackle is handed out when no damaging move could be resolved.
var Tackle = combatant.Move{Name: "tackle", Type: element.Normal, Power: 40, Accuracy: 100, PP: 35}

var errNotFound = errors.New("not found")

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

// Options configures a Client. Zero values get defaults.
type Options struct {
	BaseURL         string
	HTTPClient      *http.Client
	MaxTries        uint
	InitialInterval time.Duration
	Picker          Picker
	Logger          *logger.Logger
}

// Client talks to PokeAPI.
type Client struct {
	baseURL  string
	http     *http.Client
	maxTries uint
	interval time.Duration
	picker   Picker
	log      *logger.Logger
}

// NewClient creates a PokeAPI client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		maxTries: opts.MaxTries,
		interval: opts.InitialInterval,
		picker:   opts.Picker,
		log:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.maxTries == 0 {
		c.maxTries = DefaultMaxTries
	}
	if c.interval <= 0 {
		c.interval = backoff.DefaultInitialInterval
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	return c
}

type namedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pokemonResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Stats []struct {
		BaseStat int      `json:"base_stat"`
		Stat     namedRef `json:"stat"`
	} `json:"stats"`
	Types []struct {
		Slot int      `json:"slot"`
		Type namedRef `json:"type"`
	} `json:"types"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
	} `json:"sprites"`
	Moves []struct {
		Move    namedRef `json:"move"`
		Details []struct {
			LevelLearnedAt int      `json:"level_learned_at"`
			LearnMethod    namedRef `json:"move_learn_method"`
		} `json:"version_group_details"`
	} `json:"moves"`
}

type moveResponse struct {
	Name     string   `json:"name"`
	Power    *int     `json:"power"`
	Accuracy *int     `json:"accuracy"`
	PP       int      `json:"pp"`
	Type     namedRef `json:"type"`
}

// Species fetches a species with up to four damaging level-up moves.
func (c *Client) Species(ctx context.Context, id int) (combatant.Species, error) {
	var p pokemonResponse
	if err := c.getJSON(ctx, "/pokemon/"+strconv.Itoa(id), &p); err != nil {
		if errors.Is(err, errNotFound) {
			return combatant.Species{}, apperrors.NotFound(fmt.Sprintf("species %d not found", id))
		}
		return combatant.Species{}, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, "species lookup failed", err)
	}

	sp := combatant.Species{
		ID:     p.ID,
		Name:   p.Name,
		Sprite: p.Sprites.FrontDefault,
		Stats:  mapStats(p),
	}
	for _, t := range p.Types {
		if et, ok := element.Parse(t.Type.Name); ok {
			sp.Types = append(sp.Types, et)
		}
	}
	if len(sp.Types) == 0 {
		sp.Types = []element.Type{element.Normal}
	}

	sp.Moves = c.pickMoves(ctx, levelUpMoves(p))
	if len(sp.Moves) == 0 {
		c.log.Warnf("no damaging move found for %s, using tackle", p.Name)
		sp.Moves = []combatant.Move{Tackle}
	}
	return sp, nil
}

func mapStats(p pokemonResponse) combatant.Stats {
	var s combatant.Stats
	for _, st := range p.Stats {
		switch st.Stat.Name {
		case "hp":
			s.HP = st.BaseStat
		case "attack":
			s.Attack = st.BaseStat
		case "defense":
			s.Defense = st.BaseStat
		case "special-attack":
			s.SpecialAttack = st.BaseStat
		case "special-defense":
			s.SpecialDefense = st.BaseStat
		case "speed":
			s.Speed = st.BaseStat
		}
	}
	return s
}

func levelUpMoves(p pokemonResponse) []string {
	var names []string
	for _, m := range p.Moves {
		for _, d := range m.Details {
			if d.LearnMethod.Name == "level-up" && d.LevelLearnedAt <= MaxLearnLevel {
				names = append(names, m.Move.Name)
				break
			}
		}
	}
	return names
}

// pickMoves draws candidates in random order until MaxMoves damaging moves
// are found. Candidates that fail to load are skipped.
func (c *Client) pickMoves(ctx context.Context, candidates []string) []combatant.Move {
	pool := append([]string(nil), candidates...)
	var moves []combatant.Move
	for len(moves) < combatant.MaxMoves && len(pool) > 0 {
		i := 0
		if c.picker != nil {
			i = c.picker.IntN(len(pool))
		}
		name := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		var m moveResponse
		if err := c.getJSON(ctx, "/move/"+name, &m); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Warnf("failed to fetch move %s: %v", name, err)
			continue
		}
		if m.Power == nil || *m.Power <= 0 {
			continue
		}
		moveType, ok := element.Parse(m.Type.Name)
		if !ok {
			moveType = element.Normal
		}
		accuracy := 100
		if m.Accuracy != nil && *m.Accuracy > 0 {
			accuracy = *m.Accuracy
		}
		moves = append(moves, combatant.Move{
			Name:     m.Name,
			Type:     moveType,
			Power:    *m.Power,
			Accuracy: accuracy,
			PP:       m.PP,
		})
	}
	return moves
}

// getJSON retries transport failures and 5xx answers with exponential
// backoff. 4xx answers are permanent.
func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	url := c.baseURL + path
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return struct{}{}, backoff.Permanent(errNotFound)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return struct{}{}, backoff.Permanent(fmt.Errorf("GET %s: status %d", path, resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return struct{}{}, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxTries))
	return err
}
