package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Config

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 3001 {
		t.Errorf("Expected default port 3001, got %d", cfg.Port)
	}
	if cfg.SpeciesCacheTTL != time.Hour {
		t.Errorf("Expected species cache TTL 1h, got %s", cfg.SpeciesCacheTTL)
	}
	if cfg.DefaultLocation != "Paris" {
		t.Errorf("Expected default location Paris, got %s", cfg.DefaultLocation)
	}
	if cfg.PokeAPIBaseURL != "https://pokeapi.co/api/v2" {
		t.Errorf("Unexpected PokeAPI base URL %s", cfg.PokeAPIBaseURL)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Config
	t.Setenv("PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SESSION_TTL=90s\nSPECIES_SOURCE=static\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("SESSION_TTL", "")
	os.Unsetenv("SESSION_TTL")
	t.Setenv("SPECIES_SOURCE", "")
	os.Unsetenv("SPECIES_SOURCE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != 90*time.Second {
		t.Errorf("Expected SESSION_TTL 90s, got %s", cfg.SessionTTL)
	}
	if cfg.SpeciesSource != SpeciesSourceStatic {
		t.Errorf("Expected static species source, got %s", cfg.SpeciesSource)
	}
}

func TestLoadMissingDotEnvIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Expected missing .env to be tolerated, got %v", err)
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("SPECIES_SOURCE", "carrier-pigeon")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("Expected invalid SPECIES_SOURCE to fail")
	}
}

func TestTuningProfiles(t *testing.T) {
	cfg := &Config{Profile: "low"}
	if cfg.Tuning().ClientSendBuffer != 8 {
		t.Errorf("Expected low profile send buffer 8, got %d", cfg.Tuning().ClientSendBuffer)
	}
	cfg.Profile = "default"
	if cfg.Tuning().ClientSendBuffer != 64 {
		t.Errorf("Expected default send buffer 64, got %d", cfg.Tuning().ClientSendBuffer)
	}
}
