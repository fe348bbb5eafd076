// Package main is the entry point for the PokeArena battle server.
// It only handles dependency injection and server initialization.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/engine"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	"github.com/MRamiBalles/PokeArena/server/internal/gamedata"
	"github.com/MRamiBalles/PokeArena/server/internal/infra/cache"
	"github.com/MRamiBalles/PokeArena/server/internal/infra/openweather"
	"github.com/MRamiBalles/PokeArena/server/internal/infra/pokeapi"
	"github.com/MRamiBalles/PokeArena/server/internal/infra/roster"
	"github.com/MRamiBalles/PokeArena/server/internal/infra/storage"
	"github.com/MRamiBalles/PokeArena/server/internal/network"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/config"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/telemetry"
)

// starterTeam is given to demo trainers that have no team yet.
var starterTeam = []int{1, 4, 7, 25, 133, 143}

// seedDemoTrainers makes sure trainers 1..n can battle right away.
func seedDemoTrainers(ctx context.Context, teams *storage.SQLiteTeamRepository, n int, appLogger *logger.Logger) {
	seeded := 0
	for id := 1; id <= n; id++ {
		_, err := teams.ActiveTeam(ctx, id)
		if err == nil {
			continue
		}
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			appLogger.Errorf("Failed to read team of trainer %d: %v", id, err)
			return
		}
		team := combatant.Team{TrainerID: id, Name: "Starter team", Active: true, SpeciesIDs: starterTeam}
		if _, err := teams.UpsertTeam(ctx, team); err != nil {
			appLogger.Errorf("Failed to seed team of trainer %d: %v", id, err)
			return
		}
		seeded++
	}
	appLogger.Infof("Seeded %d demo trainer teams", seeded)
}

func speciesSource(cfg *config.Config, httpClient *http.Client, dice *engine.Dice, appLogger *logger.Logger) (cache.SpeciesSource, error) {
	if cfg.SpeciesSource == config.SpeciesSourceStatic {
		catalog, err := gamedata.Species()
		if err != nil {
			return nil, err
		}
		appLogger.Infof("Using the offline species catalog (%d species)", len(catalog))
		return pokeapi.NewStaticSource(catalog)
	}
	appLogger.Info("Using PokeAPI at " + cfg.PokeAPIBaseURL)
	return pokeapi.NewClient(pokeapi.Options{
		BaseURL:    cfg.PokeAPIBaseURL,
		HTTPClient: httpClient,
		MaxTries:   cfg.ProviderMaxRetries,
		Picker:     dice,
		Logger:     appLogger,
	}), nil
}

func main() {
	demoTrainers := flag.Int("demo-trainers", 0, "Seed a starter team for trainers 1..N that have none")
	flag.Parse()

	log.Println("[ARENA-SERVER] Initializing PokeArena battle server...")

	appLogger := logger.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		appLogger.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}
	tuning := cfg.Tuning()
	m := metrics.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		appLogger.Warn("Tracing disabled: " + err.Error())
	}

	appLogger.Info("Initializing SQLite database '" + cfg.DatabasePath + "'...")
	db, err := storage.InitSQLite(cfg.DatabasePath, storage.PoolConfig{
		MaxOpenConns: tuning.DBMaxOpenConns,
		MaxIdleConns: tuning.DBMaxIdleConns,
	})
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()

	teams := storage.NewSQLiteTeamRepository(db)
	battles := storage.NewSQLiteBattleRepository(db)
	hacks := storage.NewSQLiteHackRepository(db)

	challenges, err := gamedata.Challenges()
	if err != nil {
		appLogger.Error("Failed to load hack challenges: " + err.Error())
		os.Exit(1)
	}
	if err := hacks.SeedChallenges(ctx, challenges); err != nil {
		appLogger.Error("Failed to seed hack challenges: " + err.Error())
		os.Exit(1)
	}
	if *demoTrainers > 0 {
		seedDemoTrainers(ctx, teams, *demoTrainers, appLogger)
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(cfg.EventLogCapacity, storage.NewEventPersister(storage.NewSQLiteEventRepository(db), 5*time.Second, m))
	eventLog.OnPersistError(func(e events.BattleEvent, err error) {
		appLogger.Errorf("Failed to persist event %s of battle %s: %v", e.Type, e.BattleID, err)
	})

	dice := engine.NewDice(cfg.RandomSeed)
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	source, err := speciesSource(cfg, httpClient, dice, appLogger)
	if err != nil {
		appLogger.Error("Failed to set up species source: " + err.Error())
		os.Exit(1)
	}
	species := cache.NewSpeciesCache(source, cfg.SpeciesCacheSize, cfg.SpeciesCacheTTL)

	weatherClient := openweather.NewClient(openweather.Options{
		BaseURL:    cfg.WeatherAPIURL,
		APIKey:     cfg.WeatherAPIKey,
		HTTPClient: httpClient,
		Logger:     appLogger,
		Metrics:    m,
	})
	if cfg.WeatherAPIKey == "" {
		appLogger.Warn("WEATHER_API_KEY not set, every battle starts under clear skies")
	}

	appLogger.Info("Bootstrapping battle engine...")
	battleEngine := engine.NewEngine(engine.Config{
		SessionTTL:        cfg.SessionTTL,
		FinishedRetention: cfg.FinishedRetention,
		JanitorInterval:   cfg.JanitorInterval,
		DefaultLocation:   cfg.DefaultLocation,
	}, engine.Deps{
		Rosters:    roster.NewProvider(teams, species),
		Weather:    weatherClient,
		Sink:       battles,
		HackStore:  hacks,
		Challenges: challenges,
		Dice:       dice,
		EventLog:   eventLog,
		Logger:     appLogger,
		Metrics:    m,
		Tracer:     telemetry.Tracer("engine"),
	})
	battleEngine.Start(ctx)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(battleEngine, tuning, appLogger, m)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, network.DefaultPollInterval)

	api := network.NewAPI(battleEngine, storage.NewHistory(battles), hub, appLogger, m)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[ARENA-SERVER] HTTP API & WS Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[ARENA-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[ARENA-SERVER] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown: " + err.Error())
	}
	cancel()
	battleEngine.Stop()
	eventLog.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Warn("Tracing shutdown: " + err.Error())
	}
}
