package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/events"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

func TestRegistryGetReturnsSnapshot(t *testing.T) {
	reg := NewRegistry(0, 0)
	s, _ := newTestSession(t, AutomatedOpponent)
	reg.Put(s)

	snap, ok := reg.Get(s.ID)
	if !ok {
		t.Fatal("Expected session to be found")
	}
	snap.Turn = 99
	snap.Logs = append(snap.Logs, "tampered")

	again, _ := reg.Get(s.ID)
	if again.Turn != 1 || len(again.Logs) != 3 {
		t.Errorf("Expected registry copy untouched, got turn %d", again.Turn)
	}
}

func TestRegistryUpdateMissing(t *testing.T) {
	reg := NewRegistry(0, 0)
	_, err := reg.Update("nope", func(*BattleSession) error { return nil })
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestRegistrySerialisesConcurrentUpdates(t *testing.T) {
	reg := NewRegistry(0, 0)
	s, _ := newTestSession(t, AutomatedOpponent)
	reg.Put(s)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Update(s.ID, func(b *BattleSession) error {
				b.Turn++
				return nil
			})
		}()
	}
	wg.Wait()

	snap, _ := reg.Get(s.ID)
	if snap.Turn != 1+workers {
		t.Errorf("Expected turn %d, got %d", 1+workers, snap.Turn)
	}
}

func TestRegistryEvictsIdleAndFinished(t *testing.T) {
	reg := NewRegistry(30*time.Minute, 5*time.Minute)
	now := time.Now()

	idle, _ := newTestSession(t, AutomatedOpponent)
	idle.UpdatedAt = now.Add(-31 * time.Minute)
	finished, _ := newTestSession(t, AutomatedOpponent)
	finished.Finished = true
	finished.UpdatedAt = now.Add(-6 * time.Minute)
	fresh, _ := newTestSession(t, AutomatedOpponent)
	fresh.UpdatedAt = now.Add(-6 * time.Minute)

	reg.Put(idle)
	reg.Put(finished)
	reg.Put(fresh)

	evicted := reg.EvictIdle(now)
	if len(evicted) != 2 {
		t.Errorf("Expected 2 evictions, got %d", len(evicted))
	}
	if _, ok := reg.Get(fresh.ID); !ok {
		t.Errorf("Expected the active session to survive")
	}
	if _, ok := reg.Get(idle.ID); ok {
		t.Errorf("Expected the idle session to be gone")
	}
}

func TestJanitorSweepRecordsEvictions(t *testing.T) {
	reg := NewRegistry(time.Minute, time.Minute)
	log := events.NewEventLog(10, nil)
	m := metrics.New()
	j := NewJanitor(reg, log, logger.Discard(), m, time.Second)

	s, _ := newTestSession(t, AutomatedOpponent)
	s.UpdatedAt = time.Now().Add(-2 * time.Minute)
	reg.Put(s)

	if n := j.Sweep(); n != 1 {
		t.Errorf("Expected 1 eviction, got %d", n)
	}
	if m.SessionsEvicted != 1 {
		t.Errorf("Expected evicted counter 1, got %d", m.SessionsEvicted)
	}
	evs := log.ByBattle(s.ID)
	if len(evs) != 1 || evs[0].Type != events.EventTypeSessionEvicted {
		t.Errorf("Expected a SESSION_EVICTED event, got %+v", evs)
	}
}

func TestJanitorStopIsIdempotent(t *testing.T) {
	j := NewJanitor(NewRegistry(0, 0), events.NewEventLog(10, nil), logger.Discard(), metrics.New(), time.Hour)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	j.Stop()
	j.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the janitor loop to exit after Stop")
	}
}
