package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

func TestCurrentParsesReport(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("q") + "|" + r.URL.Query().Get("units") + "|" + r.URL.Path)
		w.Write([]byte(`{"name":"Lyon","weather":[{"main":"Rain","description":"light rain"}],"main":{"temp":12.6}}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Metrics: m})
	r := c.Current(context.Background(), "Lyon")

	if r.Condition != weather.Rain || r.TemperatureC != 13 || r.Location != "Lyon" || r.Description != "light rain" {
		t.Errorf("Expected parsed rain report, got %+v", r)
	}
	if q := gotQuery.Load(); q != "Lyon|metric|/weather" {
		t.Errorf("Expected city query in metric units, got %v", q)
	}
	if atomic.LoadInt64(&m.WeatherFallbacks) != 0 {
		t.Errorf("Expected no fallback, got %d", atomic.LoadInt64(&m.WeatherFallbacks))
	}
}

func TestCurrentDefaultsLocation(t *testing.T) {
	var city atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		city.Store(r.URL.Query().Get("q"))
		w.Write([]byte(`{"name":"Paris","weather":[{"main":"Tornado"}],"main":{"temp":20}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Metrics: metrics.New()})
	r := c.Current(context.Background(), "")
	if city.Load() != "Paris" {
		t.Errorf("Expected default location Paris, got %v", city.Load())
	}
	if r.Condition != weather.Unknown {
		t.Errorf("Expected unmapped label to be unknown, got %s", r.Condition)
	}
}

func TestCurrentFallbacks(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer broken.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failing.Close()
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()

	cases := []struct {
		name string
		opts Options
	}{
		{"missing key", Options{BaseURL: failing.URL}},
		{"non-200", Options{BaseURL: failing.URL, APIKey: "k"}},
		{"decode error", Options{BaseURL: broken.URL, APIKey: "k"}},
		{"transport error", Options{BaseURL: closed.URL, APIKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New()
			tc.opts.Metrics = m
			r := NewClient(tc.opts).Current(context.Background(), "Paris")
			if r != weather.DefaultReport() {
				t.Errorf("Expected default report, got %+v", r)
			}
			if atomic.LoadInt64(&m.WeatherFallbacks) != 1 {
				t.Errorf("Expected fallback counted, got %d", atomic.LoadInt64(&m.WeatherFallbacks))
			}
		})
	}
}
