package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/events"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = 1 * time.Minute

// Janitor periodically evicts idle and finished sessions from the registry.
type Janitor struct {
	registry *Registry
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a janitor for the given registry.
func NewJanitor(registry *Registry, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		registry: registry,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Infof("Session janitor started, sweeping every %s", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Session janitor stopped by context.")
			return
		case <-j.stopChan:
			j.logger.Info("Session janitor stopped manually.")
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Stop gracefully stops the janitor. Later calls are no-ops.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// Sweep runs one eviction pass and returns how many sessions were dropped.
func (j *Janitor) Sweep() int {
	evicted := j.registry.EvictIdle(j.now())
	if len(evicted) == 0 {
		return 0
	}
	for _, id := range evicted {
		j.eventLog.Append(events.NewEvent(events.EventTypeSessionEvicted, id, 0, 0, nil))
	}
	j.metrics.RecordSessionsEvicted(len(evicted))
	j.logger.Infof("Evicted %d idle sessions, %d still live", len(evicted), j.registry.Len())
	return len(evicted)
}
