package metrics

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordTurnTracksMax(t *testing.T) {
	c := New()

	c.RecordTurn(2 * time.Millisecond)
	c.RecordTurn(9 * time.Millisecond)
	c.RecordTurn(4 * time.Millisecond)

	if c.TurnsResolved != 3 {
		t.Errorf("Expected 3 turns, got %d", c.TurnsResolved)
	}
	if c.TurnLatencyMax != int64(9*time.Millisecond) {
		t.Errorf("Expected max latency 9ms, got %d", c.TurnLatencyMax)
	}
}

func TestSessionGauge(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordSessionCreated()
		}()
	}
	wg.Wait()
	c.RecordSessionsEvicted(20)

	if c.SessionsActive != 30 {
		t.Errorf("Expected 30 active sessions, got %d", c.SessionsActive)
	}
	if c.SessionsEvicted != 20 {
		t.Errorf("Expected 20 evicted sessions, got %d", c.SessionsEvicted)
	}
}

func TestPersistErrorsCounted(t *testing.T) {
	c := New()
	c.RecordPersist(time.Millisecond, nil)
	c.RecordPersist(time.Millisecond, errors.New("disk full"))

	if c.BattlesPersisted != 2 || c.PersistErrors != 1 {
		t.Errorf("Expected 2 writes and 1 error, got %d and %d", c.BattlesPersisted, c.PersistErrors)
	}
}

func TestHandlerServesJSON(t *testing.T) {
	c := New()
	c.RecordHackTriggered()
	c.RecordHackSubmission(false)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	hacks := body["hacks"].(map[string]interface{})
	if hacks["failed"].(float64) != 1 {
		t.Errorf("Expected 1 failed hack, got %v", hacks["failed"])
	}
	if hacks["triggered"].(float64) != 1 {
		t.Errorf("Expected 1 triggered hack, got %v", hacks["triggered"])
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := New()
	c.RecordWSMessage(true)
	c.RecordWeatherFallback()

	rec := httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))

	out := rec.Body.String()
	if !strings.Contains(out, "arena_ws_messages_total{direction=\"in\"} 1") {
		t.Errorf("Expected ws message counter in output")
	}
	if !strings.Contains(out, "arena_weather_fallbacks 1") {
		t.Errorf("Expected weather fallback counter in output")
	}
}
