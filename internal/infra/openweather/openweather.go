// Package openweather fetches the current conditions for a battle location.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

const (
	DefaultBaseURL  = "https://api.openweathermap.org/data/2.5"
	DefaultLocation = "Paris"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metrics.Collector
}

// Client reads OpenWeather's current-weather endpoint.
// It never fails: any problem yields weather.DefaultReport.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.Collector
}

// NewClient creates an OpenWeather client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 5 * time.Second}
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	if c.metrics == nil {
		c.metrics = metrics.Get()
	}
	return c
}

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Current returns the weather at location, or the default report.
func (c *Client) Current(ctx context.Context, location string) weather.Report {
	if location == "" {
		location = DefaultLocation
	}
	if c.apiKey == "" {
		c.log.Warn("WEATHER_API_KEY not set, using default weather")
		return c.fallback()
	}

	report, err := c.fetch(ctx, location)
	if err != nil {
		c.log.Errorf("weather lookup for %s failed: %v", location, err)
		return c.fallback()
	}
	return report
}

func (c *Client) fetch(ctx context.Context, location string) (weather.Report, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return weather.Report{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return weather.Report{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return weather.Report{}, fmt.Errorf("decode: %w", err)
	}

	report := weather.Report{
		Condition:    weather.Unknown,
		TemperatureC: int(math.Round(body.Main.Temp)),
		Description:  "Unknown conditions",
		Location:     body.Name,
	}
	if len(body.Weather) > 0 {
		report.Condition = weather.FromProvider(body.Weather[0].Main)
		if body.Weather[0].Description != "" {
			report.Description = body.Weather[0].Description
		}
	}
	return report, nil
}

func (c *Client) fallback() weather.Report {
	c.metrics.RecordWeatherFallback()
	return weather.DefaultReport()
}
