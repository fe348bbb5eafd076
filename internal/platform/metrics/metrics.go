// Package metrics provides observability for the arena server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Session lifecycle
	SessionsCreated int64
	SessionsActive  int64
	SessionsEvicted int64
	GhostBattles    int64

	// Turn resolution
	TurnsResolved  int64
	TurnLatencySum int64 // nanoseconds
	TurnLatencyMax int64
	LastTurnTime   time.Time

	// Persistence
	BattlesPersisted int64
	PersistLatSum    int64
	PersistLatMax    int64
	PersistErrors    int64
	EventsWritten    int64
	EventWriteErrors int64

	// Hack challenges
	HacksTriggered int64
	HacksSolved    int64
	HacksFailed    int64

	// Upstream providers
	WeatherFallbacks int64
	SpeciesErrors    int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New returns an empty collector. Tests use it to avoid sharing the global one.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordSessionCreated records a session published to the registry.
func (c *Collector) RecordSessionCreated() {
	atomic.AddInt64(&c.SessionsCreated, 1)
	atomic.AddInt64(&c.SessionsActive, 1)
}

// RecordSessionsEvicted records sessions removed by the janitor.
func (c *Collector) RecordSessionsEvicted(n int) {
	atomic.AddInt64(&c.SessionsEvicted, int64(n))
	atomic.AddInt64(&c.SessionsActive, -int64(n))
}

// RecordGhostBattle records an offline battle resolution.
func (c *Collector) RecordGhostBattle() {
	atomic.AddInt64(&c.GhostBattles, 1)
}

// RecordTurn records a resolved attack, switch or flee.
func (c *Collector) RecordTurn(latency time.Duration) {
	atomic.AddInt64(&c.TurnsResolved, 1)
	atomic.AddInt64(&c.TurnLatencySum, int64(latency))
	storeMax(&c.TurnLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTurnTime = time.Now()
	c.mu.Unlock()
}

// RecordPersist records a battle write to the persistence sink.
func (c *Collector) RecordPersist(latency time.Duration, err error) {
	atomic.AddInt64(&c.BattlesPersisted, 1)
	atomic.AddInt64(&c.PersistLatSum, int64(latency))
	storeMax(&c.PersistLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.PersistErrors, 1)
	}
}

// RecordEventWrite records an event written through to storage.
func (c *Collector) RecordEventWrite(err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordHackTriggered records a hack attached to a battle.
func (c *Collector) RecordHackTriggered() {
	atomic.AddInt64(&c.HacksTriggered, 1)
}

// RecordHackSubmission records the outcome of a hack answer.
func (c *Collector) RecordHackSubmission(correct bool) {
	if correct {
		atomic.AddInt64(&c.HacksSolved, 1)
	} else {
		atomic.AddInt64(&c.HacksFailed, 1)
	}
}

// RecordWeatherFallback records a weather lookup that degraded to clear.
func (c *Collector) RecordWeatherFallback() {
	atomic.AddInt64(&c.WeatherFallbacks, 1)
}

// RecordSpeciesError records a failed species lookup.
func (c *Collector) RecordSpeciesError() {
	atomic.AddInt64(&c.SpeciesErrors, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTurn := c.LastTurnTime
	c.mu.RUnlock()

	turns := atomic.LoadInt64(&c.TurnsResolved)
	persisted := atomic.LoadInt64(&c.BattlesPersisted)

	// Calculate averages
	var turnAvg, persistAvg float64
	if turns > 0 {
		turnAvg = float64(atomic.LoadInt64(&c.TurnLatencySum)) / float64(turns) / 1e6 // ms
	}
	if persisted > 0 {
		persistAvg = float64(atomic.LoadInt64(&c.PersistLatSum)) / float64(persisted) / 1e6
	}

	lastTurnStr := ""
	if !lastTurn.IsZero() {
		lastTurnStr = lastTurn.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"sessions": map[string]interface{}{
			"created":       atomic.LoadInt64(&c.SessionsCreated),
			"active":        atomic.LoadInt64(&c.SessionsActive),
			"evicted":       atomic.LoadInt64(&c.SessionsEvicted),
			"ghost_battles": atomic.LoadInt64(&c.GhostBattles),
		},

		"turns": map[string]interface{}{
			"count":          turns,
			"avg_latency_ms": turnAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TurnLatencyMax)) / 1e6,
			"last_turn":      lastTurnStr,
		},

		"persistence": map[string]interface{}{
			"battles":            persisted,
			"avg_write_lat_ms":   persistAvg,
			"max_write_lat_ms":   float64(atomic.LoadInt64(&c.PersistLatMax)) / 1e6,
			"errors":             atomic.LoadInt64(&c.PersistErrors),
			"events_written":     atomic.LoadInt64(&c.EventsWritten),
			"event_write_errors": atomic.LoadInt64(&c.EventWriteErrors),
		},

		"hacks": map[string]interface{}{
			"triggered": atomic.LoadInt64(&c.HacksTriggered),
			"solved":    atomic.LoadInt64(&c.HacksSolved),
			"failed":    atomic.LoadInt64(&c.HacksFailed),
		},

		"upstream": map[string]interface{}{
			"weather_fallbacks": atomic.LoadInt64(&c.WeatherFallbacks),
			"species_errors":    atomic.LoadInt64(&c.SpeciesErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return collector.Handler()
}

// PrometheusHandler returns the global collector in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return collector.PrometheusHandler()
}

// Handler serves this collector's snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler serves this collector in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}
		gauge := func(name, help string, v float64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s %.2f\n\n", name, v)
		}

		// Sessions
		counter("arena_sessions_created", "Total interactive sessions created", atomic.LoadInt64(&c.SessionsCreated))
		gauge("arena_sessions_active", "Sessions currently held in memory", float64(atomic.LoadInt64(&c.SessionsActive)))
		counter("arena_sessions_evicted", "Sessions evicted by the janitor", atomic.LoadInt64(&c.SessionsEvicted))
		counter("arena_ghost_battles", "Offline battles resolved", atomic.LoadInt64(&c.GhostBattles))

		// Turns
		counter("arena_turns_resolved", "Total battle actions resolved", atomic.LoadInt64(&c.TurnsResolved))
		gauge("arena_turn_latency_max_ms", "Maximum action latency", float64(atomic.LoadInt64(&c.TurnLatencyMax))/1e6)

		// Persistence
		counter("arena_battles_persisted", "Finished battles written", atomic.LoadInt64(&c.BattlesPersisted))
		counter("arena_persist_errors", "Battle writes that failed", atomic.LoadInt64(&c.PersistErrors))
		counter("arena_events_written", "Battle events written through", atomic.LoadInt64(&c.EventsWritten))

		// Hacks
		fmt.Fprintf(w, "# HELP arena_hacks_total Hack challenges by outcome\n")
		fmt.Fprintf(w, "# TYPE arena_hacks_total counter\n")
		fmt.Fprintf(w, "arena_hacks_total{outcome=\"triggered\"} %d\n", atomic.LoadInt64(&c.HacksTriggered))
		fmt.Fprintf(w, "arena_hacks_total{outcome=\"solved\"} %d\n", atomic.LoadInt64(&c.HacksSolved))
		fmt.Fprintf(w, "arena_hacks_total{outcome=\"failed\"} %d\n\n", atomic.LoadInt64(&c.HacksFailed))

		// Upstream
		counter("arena_weather_fallbacks", "Weather lookups degraded to clear", atomic.LoadInt64(&c.WeatherFallbacks))
		counter("arena_species_errors", "Species lookups that failed", atomic.LoadInt64(&c.SpeciesErrors))

		// WebSocket metrics
		gauge("arena_ws_connections", "Active WebSocket connections", float64(atomic.LoadInt64(&c.WSConnectionsActive)))

		fmt.Fprintf(w, "# HELP arena_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE arena_ws_messages_total counter\n")
		fmt.Fprintf(w, "arena_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "arena_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
