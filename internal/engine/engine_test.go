package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

type fakeRosters struct {
	teams   map[int]combatant.Team
	species func(id int) (combatant.Species, error)
}

func (f *fakeRosters) ActiveTeam(_ context.Context, trainerID int) (combatant.Team, error) {
	t, ok := f.teams[trainerID]
	if !ok {
		return combatant.Team{}, apperrors.NotFound("no active team")
	}
	return t, nil
}

func (f *fakeRosters) Species(_ context.Context, id int) (combatant.Species, error) {
	return f.species(id)
}

type fakeWeather struct{ cond weather.Condition }

func (f fakeWeather) Current(_ context.Context, location string) weather.Report {
	return weather.Report{Condition: f.cond, TemperatureC: 12, Location: location}
}

type fakeSink struct {
	mu      sync.Mutex
	records []battle.Record
	err     error
}

func (f *fakeSink) SaveBattle(_ context.Context, r battle.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, r)
	return int64(len(f.records)), nil
}

type memHackStore struct {
	mu       sync.Mutex
	attempts map[string]hack.Attempt
}

func newMemHackStore() *memHackStore {
	return &memHackStore{attempts: make(map[string]hack.Attempt)}
}

func (m *memHackStore) CreateAttempt(_ context.Context, a hack.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = a
	return nil
}

func (m *memHackStore) Attempt(_ context.Context, id string) (hack.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return a, apperrors.NotFound("hack not found")
	}
	return a, nil
}

func (m *memHackStore) SaveSubmission(_ context.Context, id, answer string, correct bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.attempts[id]
	a.Answer = answer
	a.Solved = correct
	a.AttemptedAt = &at
	if correct {
		a.SolvedAt = &at
	}
	m.attempts[id] = a
	return nil
}

func (m *memHackStore) PendingAttempts(_ context.Context, userID int) ([]hack.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hack.Attempt
	for _, a := range m.attempts {
		if a.UserID == userID && !a.Solved {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memHackStore) AttemptCounts(_ context.Context, userID int) (int, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, solved, failed := 0, 0, 0
	for _, a := range m.attempts {
		if a.UserID != userID {
			continue
		}
		total++
		if a.Solved {
			solved++
		} else if a.Answered() {
			failed++
		}
	}
	return total, solved, failed, nil
}

var testPool = []hack.Challenge{
	{ID: 1, Code: "0x41", Category: "hex", Difficulty: hack.Medium, Solution: "A"},
}

type harness struct {
	engine  *Engine
	sink    *fakeSink
	hacks   *memHackStore
	metrics *metrics.Collector
	log     *events.EventLog
}

// newHarness wires an engine whose player 1 fields a strong team and whose
// automated opponents are always fragile.
func newHarness(t *testing.T, cond weather.Condition) *harness {
	t.Helper()
	rosters := &fakeRosters{
		teams: map[int]combatant.Team{
			1: {ID: 10, TrainerID: 1, SpeciesIDs: []int{25, 133}},
			2: {ID: 20, TrainerID: 2, SpeciesIDs: []int{129}},
			3: {ID: 30, TrainerID: 3},
		},
		species: func(id int) (combatant.Species, error) {
			switch id {
			case 25:
				return fighter("pikachu", []element.Type{element.Electric}, 100, 500, 50, 100), nil
			case 133:
				return fighter("eevee", []element.Type{element.Normal}, 100, 500, 50, 100), nil
			default:
				return fighter("magikarp", []element.Type{element.Water}, 1, 10, 50, 10), nil
			}
		},
	}
	h := &harness{
		sink:    &fakeSink{},
		hacks:   newMemHackStore(),
		metrics: metrics.New(),
		log:     events.NewEventLog(100, nil),
	}
	h.engine = NewEngine(Config{}, Deps{
		Rosters:    rosters,
		Weather:    fakeWeather{cond: cond},
		Sink:       h.sink,
		HackStore:  h.hacks,
		Challenges: testPool,
		Dice:       NewDice(2024),
		EventLog:   h.log,
		Logger:     logger.Discard(),
		Metrics:    h.metrics,
	})
	return h
}

func TestCreateSessionAgainstAutomatedOpponent(t *testing.T) {
	h := newHarness(t, weather.Clouds)

	s, _, err := h.engine.CreateSession(context.Background(), 1, AutomatedOpponent, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if len(s.Opponent.Members) != 2 {
		t.Errorf("Expected automated roster to match team size 2, got %d", len(s.Opponent.Members))
	}
	if s.PlayerTeamID != 10 {
		t.Errorf("Expected player team 10, got %d", s.PlayerTeamID)
	}
	if h.engine.Registry().Len() != 1 {
		t.Errorf("Expected one live session")
	}
	evs := h.log.ByBattle(s.ID)
	if len(evs) == 0 || evs[0].Type != events.EventTypeBattleStarted {
		t.Errorf("Expected BATTLE_STARTED event, got %+v", evs)
	}
	if h.metrics.SessionsCreated != 1 {
		t.Errorf("Expected sessions created 1, got %d", h.metrics.SessionsCreated)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	ctx := context.Background()

	if _, _, err := h.engine.CreateSession(ctx, 99, 0, ""); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("Expected validation for missing team, got %v", err)
	}
	if _, _, err := h.engine.CreateSession(ctx, 3, 0, ""); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("Expected validation for empty team, got %v", err)
	}
	if _, _, err := h.engine.CreateSession(ctx, 1, 3, ""); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("Expected validation for empty opponent team, got %v", err)
	}
	if h.engine.Registry().Len() != 0 {
		t.Errorf("Expected nothing published on failure")
	}
}

func TestCreateSessionSpeciesFailureWrapsUpstream(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	h.engine.rosters.(*fakeRosters).species = func(int) (combatant.Species, error) {
		return combatant.Species{}, errors.New("connection refused")
	}

	_, _, err := h.engine.CreateSession(context.Background(), 1, 0, "")
	if apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("Expected validation code, got %s", apperrors.CodeOf(err))
	}
	if !apperrors.HasCode(err, apperrors.CodeUpstreamUnavailable) {
		t.Errorf("Expected upstream cause, got %v", err)
	}
	if h.metrics.SpeciesErrors != 1 {
		t.Errorf("Expected species error counted")
	}
}

func TestActionsCheckOwnershipAndExistence(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	ctx := context.Background()
	s, _, _ := h.engine.CreateSession(ctx, 1, 0, "")

	if _, err := h.engine.Attack(ctx, "missing", 1, 0); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := h.engine.Attack(ctx, s.ID, 2, 0); !apperrors.HasCode(err, apperrors.CodeRuleViolation) {
		t.Errorf("Expected rule violation for wrong player, got %v", err)
	}
	if _, err := h.engine.GetSession("missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestFinishedBattleIsPersistedBeforeReturn(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	ctx := context.Background()
	s, _, _ := h.engine.CreateSession(ctx, 1, 0, "")

	var snap *BattleSession
	var err error
	for i := 0; i < 2; i++ {
		snap, err = h.engine.Attack(ctx, s.ID, 1, 0)
		if err != nil {
			t.Fatalf("Attack %d failed: %v", i, err)
		}
	}
	if !snap.Finished || snap.Winner != SidePlayer {
		t.Fatalf("Expected player victory, got finished=%v winner=%s", snap.Finished, snap.Winner)
	}
	if len(h.sink.records) != 1 {
		t.Fatalf("Expected one persisted record, got %d", len(h.sink.records))
	}
	rec := h.sink.records[0]
	if rec.WinnerID == nil || *rec.WinnerID != 1 || !rec.Ghost {
		t.Errorf("Expected automated record won by 1, got %+v", rec)
	}

	if _, err := h.engine.Attack(ctx, s.ID, 1, 0); !apperrors.HasCode(err, apperrors.CodeRuleViolation) {
		t.Errorf("Expected finished battle to reject attacks, got %v", err)
	}
	if len(h.sink.records) != 1 {
		t.Errorf("Expected no second record")
	}

	var finished bool
	for _, ev := range h.log.ByBattle(s.ID) {
		if ev.Type == events.EventTypeBattleFinished {
			finished = true
		}
	}
	if !finished {
		t.Errorf("Expected BATTLE_FINISHED event")
	}
}

func TestPersistFailureDoesNotChangeSession(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	h.sink.err = errors.New("database is locked")
	ctx := context.Background()
	s, _, _ := h.engine.CreateSession(ctx, 1, 0, "")

	snap, err := h.engine.Flee(ctx, s.ID, 1)
	if err != nil {
		t.Fatalf("Expected flee to succeed despite sink error, got %v", err)
	}
	if !snap.Finished || snap.Winner != SideOpponent {
		t.Errorf("Expected fled battle to be lost")
	}
	if h.metrics.PersistErrors != 1 {
		t.Errorf("Expected persist error counted, got %d", h.metrics.PersistErrors)
	}
}

func TestConcurrentActionsOnOneSession(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	ctx := context.Background()

	// Tanky opponent so the battle outlasts the burst.
	h.engine.rosters.(*fakeRosters).species = func(id int) (combatant.Species, error) {
		sp := fighter("chansey", []element.Type{element.Normal}, 60000, 1, 999, 1)
		sp.Moves[0].PP = 100
		return sp, nil
	}
	s, _, err := h.engine.CreateSession(ctx, 1, 0, "")
	if err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.Attack(ctx, s.ID, 1, 0)
		}()
	}
	wg.Wait()

	snap, _ := h.engine.GetSession(s.ID)
	if snap.Turn != 1+n {
		t.Errorf("Expected turn %d, got %d", 1+n, snap.Turn)
	}
	if snap.Player.Active().Moves[0].CurrentPP != 100-n {
		t.Errorf("Expected PP %d, got %d", 100-n, snap.Player.Active().Moves[0].CurrentPP)
	}
}

func TestGhostBattleIsPersistedAsGhost(t *testing.T) {
	h := newHarness(t, weather.Clouds)

	res, err := h.engine.StartGhostBattle(context.Background(), 1, 2, "Lyon")
	if err != nil {
		t.Fatalf("StartGhostBattle failed: %v", err)
	}
	if res.Log.Summary.Winner != "attacker" {
		t.Errorf("Expected attacker win, got %s", res.Log.Summary.Winner)
	}
	if res.Weather.Location != "Lyon" {
		t.Errorf("Expected requested location, got %s", res.Weather.Location)
	}
	if len(h.sink.records) != 1 {
		t.Fatalf("Expected one record, got %d", len(h.sink.records))
	}
	rec := h.sink.records[0]
	if !rec.Ghost || rec.DefenderID != 2 || rec.DefenderTeamID != 20 {
		t.Errorf("Unexpected ghost record %+v", rec)
	}
	if rec.WinnerID == nil || *rec.WinnerID != 1 {
		t.Errorf("Expected winner 1")
	}
	if res.RecordID != 1 {
		t.Errorf("Expected record id 1, got %d", res.RecordID)
	}
	if h.metrics.GhostBattles != 1 {
		t.Errorf("Expected ghost battle counted")
	}
}

func TestReplayReturnsBattleEvents(t *testing.T) {
	h := newHarness(t, weather.Clouds)
	ctx := context.Background()
	s, _, _ := h.engine.CreateSession(ctx, 1, 0, "")
	h.engine.Attack(ctx, s.ID, 1, 0)

	evs, err := h.engine.Replay(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) < 2 || evs[0].Type != events.EventTypeBattleStarted {
		t.Fatalf("Expected the battle to open with BATTLE_STARTED, got %+v", evs)
	}
	if last := evs[len(evs)-1]; last.Type != events.EventTypeTurnResolved || last.Turn != 2 {
		t.Errorf("Expected the turn to be the latest event, got %+v", last)
	}
	if _, err := h.engine.Replay("missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
