package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/hack"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/telemetry"
)

// AutomatedSpeciesMax is the highest species id the automated opponent draws from.
const AutomatedSpeciesMax = 151

// RosterProvider resolves trainers' teams and species data.
type RosterProvider interface {
	// ActiveTeam returns a NotFound error when the trainer has no active team.
	ActiveTeam(ctx context.Context, trainerID int) (combatant.Team, error)
	Species(ctx context.Context, id int) (combatant.Species, error)
}

// WeatherProvider reports the current weather. It never fails: on any
// upstream problem it returns weather.DefaultReport.
type WeatherProvider interface {
	Current(ctx context.Context, location string) weather.Report
}

// BattleSink stores finished battles.
type BattleSink interface {
	SaveBattle(ctx context.Context, r battle.Record) (int64, error)
}

// Config holds the engine's tunables.
type Config struct {
	SessionTTL        time.Duration
	FinishedRetention time.Duration
	JanitorInterval   time.Duration
	DefaultLocation   string
}

// Deps are the collaborators the engine is wired with.
type Deps struct {
	Rosters    RosterProvider
	Weather    WeatherProvider
	Sink       BattleSink
	HackStore  HackStore
	Challenges []hack.Challenge
	Dice       *Dice
	EventLog   *events.EventLog
	Logger     *logger.Logger
	Metrics    *metrics.Collector
	Tracer     trace.Tracer
}

// Engine is the central orchestrator: it builds sessions, routes actions into
// the registry, persists finished battles and publishes events.
type Engine struct {
	registry *Registry
	janitor  *Janitor
	calc     *Calculator
	dice     *Dice
	hacks    *HackSystem

	rosters  RosterProvider
	weather  WeatherProvider
	sink     BattleSink
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	tracer   trace.Tracer

	defaultLocation string
	now             func() time.Time
}

// NewEngine initializes the engine and its sub-systems.
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Dice == nil {
		deps.Dice = NewDice(0)
	}
	if deps.EventLog == nil {
		deps.EventLog = events.NewEventLog(0, nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.NoopTracer()
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "Paris"
	}

	registry := NewRegistry(cfg.SessionTTL, cfg.FinishedRetention)
	return &Engine{
		registry: registry,
		janitor:  NewJanitor(registry, deps.EventLog, deps.Logger, deps.Metrics, cfg.JanitorInterval),
		calc:     NewCalculator(deps.Dice),
		dice:     deps.Dice,
		hacks:    NewHackSystem(deps.Challenges, deps.HackStore, deps.Dice, deps.EventLog, deps.Logger, deps.Metrics),

		rosters:  deps.Rosters,
		weather:  deps.Weather,
		sink:     deps.Sink,
		eventLog: deps.EventLog,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,

		defaultLocation: cfg.DefaultLocation,
		now:             time.Now,
	}
}

// Start spawns the session janitor.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting battle engine...")
	go e.janitor.Start(ctx)
}

// Stop halts background work.
func (e *Engine) Stop() {
	e.janitor.Stop()
}

// Hacks exposes the hack system for the API.
func (e *Engine) Hacks() *HackSystem {
	return e.hacks
}

// EventLog exposes the event log for pollers and replay.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

// Registry exposes the live session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// lineup is the resolved input of a battle.
type lineup struct {
	player, opponent         combatant.Roster
	playerTeam, opponentTeam combatant.Team
	automated                bool
}

// loadLineup resolves both teams and fetches every species concurrently.
func (e *Engine) loadLineup(ctx context.Context, playerID, opponentID int) (*lineup, error) {
	playerTeam, err := e.activeTeam(ctx, playerID, "you need an active team to battle", "your team is empty")
	if err != nil {
		return nil, err
	}

	l := &lineup{playerTeam: playerTeam, automated: opponentID == AutomatedOpponent}
	var opponentIDs []int
	if l.automated {
		opponentIDs = make([]int, len(playerTeam.SpeciesIDs))
		for i := range opponentIDs {
			opponentIDs[i] = e.dice.IntN(AutomatedSpeciesMax) + 1
		}
	} else {
		l.opponentTeam, err = e.activeTeam(ctx, opponentID, "your opponent has no active team", "your opponent's team is empty")
		if err != nil {
			return nil, err
		}
		opponentIDs = l.opponentTeam.SpeciesIDs
	}

	playerSpecies := make([]combatant.Species, len(playerTeam.SpeciesIDs))
	opponentSpecies := make([]combatant.Species, len(opponentIDs))

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(dst []combatant.Species, ids []int) {
		for i, id := range ids {
			g.Go(func() error {
				sp, err := e.rosters.Species(gctx, id)
				if err != nil {
					return fmt.Errorf("species %d: %w", id, err)
				}
				dst[i] = sp
				return nil
			})
		}
	}
	fetch(playerSpecies, playerTeam.SpeciesIDs)
	fetch(opponentSpecies, opponentIDs)
	if err := g.Wait(); err != nil {
		e.metrics.RecordSpeciesError()
		e.logger.Errorf("Species lookup failed: %v", err)
		if !apperrors.HasCode(err, apperrors.CodeUpstreamUnavailable) {
			err = apperrors.Wrap(apperrors.CodeUpstreamUnavailable, "species provider unavailable", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeValidation, "could not load combatants", err)
	}

	if l.player, err = combatant.NewRoster(playerSpecies); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid team", err)
	}
	if l.opponent, err = combatant.NewRoster(opponentSpecies); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid opponent team", err)
	}
	return l, nil
}

func (e *Engine) activeTeam(ctx context.Context, trainerID int, missingMsg, emptyMsg string) (combatant.Team, error) {
	team, err := e.rosters.ActiveTeam(ctx, trainerID)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return team, apperrors.Validation(missingMsg)
	}
	if err != nil {
		return team, fmt.Errorf("load active team of %d: %w", trainerID, err)
	}
	if len(team.SpeciesIDs) == 0 {
		return team, apperrors.Validation(emptyMsg)
	}
	return team, nil
}

func (e *Engine) location(loc string) string {
	if loc == "" {
		return e.defaultLocation
	}
	return loc
}

// rollHack never fails the caller: a storage problem only costs the hack.
func (e *Engine) rollHack(ctx context.Context, battleID string, userID int, l *lineup, cond weather.Condition) *TriggeredHack {
	h, err := e.hacks.Roll(ctx, battleID, userID, cond, l.player.Types(), l.opponent.Types())
	if err != nil {
		e.logger.Warnf("Hack roll for battle %s failed: %v", battleID, err)
		return nil
	}
	return h
}

// CreateSession starts an interactive battle. Opponent 0 is the automated opponent.
func (e *Engine) CreateSession(ctx context.Context, playerID, opponentID int, location string) (*BattleSession, *TriggeredHack, error) {
	ctx, span := e.startSpan(ctx, "engine.CreateSession",
		attribute.Int("trainer.id", playerID),
		attribute.Int("opponent.id", opponentID),
	)
	defer span.End()

	l, err := e.loadLineup(ctx, playerID, opponentID)
	if err != nil {
		return nil, nil, fail(span, err)
	}
	report := e.weather.Current(ctx, e.location(location))

	s := NewSession(playerID, opponentID, l.player, l.opponent, report.Condition, e.now())
	s.PlayerTeamID = l.playerTeam.ID
	s.OpponentTeamID = l.opponentTeam.ID

	e.eventLog.Append(events.NewEvent(events.EventTypeBattleStarted, s.ID, playerID, s.Turn, map[string]interface{}{
		"opponent_id": opponentID,
		"weather":     report.Condition,
		"location":    report.Location,
	}))

	h := e.rollHack(ctx, s.ID, playerID, l, report.Condition)
	if h != nil {
		s.HackAttemptID = h.Attempt.ID
	}

	e.registry.Put(s)
	e.metrics.RecordSessionCreated()
	span.SetAttributes(attribute.String("battle.id", s.ID))
	e.logger.Event("BATTLE_STARTED", fmt.Sprint(playerID), fmt.Sprintf("battle %s vs %d under %s", s.ID, opponentID, report.Condition))

	return s.Clone(), h, nil
}

// GetSession returns a snapshot of a live session.
func (e *Engine) GetSession(id string) (*BattleSession, error) {
	s, ok := e.registry.Get(id)
	if !ok {
		return nil, apperrors.NotFound("battle not found")
	}
	return s, nil
}

// act runs one player action inside the session's critical section and
// handles everything that follows: metrics, events and persistence.
func (e *Engine) act(ctx context.Context, name, id string, playerID int, evType events.EventType, fn func(*BattleSession) (interface{}, error)) (*BattleSession, error) {
	ctx, span := e.startSpan(ctx, name,
		attribute.String("battle.id", id),
		attribute.Int("trainer.id", playerID),
	)
	defer span.End()

	start := time.Now()
	var payload interface{}
	justFinished := false

	snap, err := e.registry.Update(id, func(s *BattleSession) error {
		if s.PlayerID != playerID {
			return apperrors.RuleViolation("this is not your battle")
		}
		p, err := fn(s)
		if err != nil {
			return err
		}
		payload = p
		justFinished = s.Finished
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	e.metrics.RecordTurn(time.Since(start))
	e.eventLog.Append(events.NewEvent(evType, id, playerID, snap.Turn, payload))

	if justFinished {
		span.SetAttributes(attribute.String("battle.winner", string(snap.Winner)))
		e.eventLog.Append(events.NewEvent(events.EventTypeBattleFinished, id, playerID, snap.Turn, map[string]interface{}{
			"winner": snap.Winner,
		}))
		e.persist(ctx, snap.Record())
		e.logger.Event("BATTLE_FINISHED", fmt.Sprint(playerID), fmt.Sprintf("battle %s won by %s after %d turns", id, snap.Winner, snap.Turn))
	}
	return snap, nil
}

// persist stores a finished battle. Failures are logged and counted only.
func (e *Engine) persist(ctx context.Context, r battle.Record) int64 {
	if e.sink == nil {
		return 0
	}
	start := time.Now()
	id, err := e.sink.SaveBattle(ctx, r)
	e.metrics.RecordPersist(time.Since(start), err)
	if err != nil {
		e.logger.Errorf("Failed to persist battle of trainer %d: %v", r.AttackerID, err)
		return 0
	}
	return id
}

// Attack resolves one turn using the given move.
func (e *Engine) Attack(ctx context.Context, id string, playerID, moveIndex int) (*BattleSession, error) {
	return e.act(ctx, "engine.Attack", id, playerID, events.EventTypeTurnResolved, func(s *BattleSession) (interface{}, error) {
		res, err := s.Attack(e.calc, moveIndex, e.now())
		return res, err
	})
}

// SwitchCombatant swaps the player's active combatant.
func (e *Engine) SwitchCombatant(ctx context.Context, id string, playerID, slotID int, forced bool) (*BattleSession, error) {
	return e.act(ctx, "engine.SwitchCombatant", id, playerID, events.EventTypeCombatantSwitched, func(s *BattleSession) (interface{}, error) {
		res, err := s.Switch(e.calc, slotID, forced, e.now())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"pokemon_id": slotID, "is_forced": forced, "turn_result": res}, nil
	})
}

// Flee forfeits the battle.
func (e *Engine) Flee(ctx context.Context, id string, playerID int) (*BattleSession, error) {
	return e.act(ctx, "engine.Flee", id, playerID, events.EventTypeBattleFled, func(s *BattleSession) (interface{}, error) {
		return nil, s.Flee(e.now())
	})
}

// Replay returns the retained events of a battle.
func (e *Engine) Replay(id string) ([]events.BattleEvent, error) {
	evs := e.eventLog.ByBattle(id)
	if len(evs) == 0 {
		if _, ok := e.registry.Get(id); !ok {
			return nil, apperrors.NotFound("battle not found")
		}
	}
	return evs, nil
}

// GhostResult is the outcome of an offline battle.
type GhostResult struct {
	BattleID string         `json:"battle_id"`
	RecordID int64          `json:"id,omitempty"`
	Weather  weather.Report `json:"weather"`
	Log      GhostLog       `json:"battle_log"`
	Hack     *TriggeredHack `json:"hack,omitempty"`
}

// StartGhostBattle resolves a full battle synchronously and stores it.
func (e *Engine) StartGhostBattle(ctx context.Context, playerID, opponentID int, location string) (*GhostResult, error) {
	ctx, span := e.startSpan(ctx, "engine.StartGhostBattle",
		attribute.Int("trainer.id", playerID),
		attribute.Int("opponent.id", opponentID),
	)
	defer span.End()

	l, err := e.loadLineup(ctx, playerID, opponentID)
	if err != nil {
		return nil, fail(span, err)
	}
	report := e.weather.Current(ctx, e.location(location))

	battleID := uuid.NewString()
	log := ResolveGhost(e.calc, l.player, l.opponent, report.Condition)

	rec := battle.Record{
		AttackerID:     playerID,
		DefenderID:     opponentID,
		AttackerTeamID: l.playerTeam.ID,
		DefenderTeamID: l.opponentTeam.ID,
		Log:            log,
		Ghost:          true,
		CreatedAt:      e.now(),
	}
	if l.automated {
		rec.DefenderID = playerID
		rec.DefenderTeamID = l.playerTeam.ID
	}
	switch log.Summary.Winner {
	case "attacker":
		rec.WinnerID = &playerID
	case "defender":
		if !l.automated {
			rec.WinnerID = &opponentID
		}
	}

	res := &GhostResult{
		BattleID: battleID,
		RecordID: e.persist(ctx, rec),
		Weather:  report,
		Log:      log,
		Hack:     e.rollHack(ctx, battleID, playerID, l, report.Condition),
	}

	e.metrics.RecordGhostBattle()
	span.SetAttributes(
		attribute.String("battle.id", battleID),
		attribute.String("battle.winner", log.Summary.Winner),
	)
	e.eventLog.Append(events.NewEvent(events.EventTypeGhostBattleResolved, battleID, playerID, log.Summary.TotalTurns, log.Summary))
	e.logger.Event("GHOST_BATTLE", fmt.Sprint(playerID), fmt.Sprintf("battle %s vs %d: %s in %d turns", battleID, opponentID, log.Summary.Winner, log.Summary.TotalTurns))

	return res, nil
}
