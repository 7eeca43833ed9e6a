package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearWadoEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.SeriesConcurrency != 6 {
		t.Errorf("Engine.SeriesConcurrency = %d, want 6", cfg.Engine.SeriesConcurrency)
	}
	if cfg.Engine.GlobalSeriesConcurrency != 3 {
		t.Errorf("Engine.GlobalSeriesConcurrency = %d, want 3", cfg.Engine.GlobalSeriesConcurrency)
	}
	if cfg.Engine.ConnectTimeout != 5000*time.Millisecond {
		t.Errorf("Engine.ConnectTimeout = %v, want 5000ms", cfg.Engine.ConnectTimeout)
	}
	if cfg.Engine.ReadTimeout != 15000*time.Millisecond {
		t.Errorf("Engine.ReadTimeout = %v, want 15000ms", cfg.Engine.ReadTimeout)
	}
	if !cfg.Engine.WriteInCache {
		t.Error("Engine.WriteInCache = false, want true")
	}
	if cfg.Engine.MaxRedirects != 3 {
		t.Errorf("Engine.MaxRedirects = %d, want 3", cfg.Engine.MaxRedirects)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %q, want memory", cfg.Cache.Type)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearWadoEnv(t)
	os.Setenv("WADO_SERVER_PORT", "9090")
	os.Setenv("WADO_ENGINE_SERIES_CONCURRENCY", "8")
	os.Setenv("WADO_ENGINE_CONNECT_TIMEOUT", "5s")
	os.Setenv("WADO_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	defer clearWadoEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.SeriesConcurrency != 8 {
		t.Errorf("Engine.SeriesConcurrency = %d, want 8", cfg.Engine.SeriesConcurrency)
	}
	if cfg.Engine.ConnectTimeout != 5*time.Second {
		t.Errorf("Engine.ConnectTimeout = %v, want 5s", cfg.Engine.ConnectTimeout)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[0] != want[0] || cfg.CORS.AllowedOrigins[1] != want[1] {
		t.Errorf("CORS.AllowedOrigins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
}

func TestValidateRejectsNonPositiveValues(t *testing.T) {
	clearWadoEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.Engine.SeriesConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for zero series concurrency")
	}

	cfg.Engine.SeriesConcurrency = 4
	cfg.Engine.MaxRedirects = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for negative max redirects")
	}
}

func TestValidateRejectsUnsupportedCacheType(t *testing.T) {
	clearWadoEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.Cache.Enabled = true
	cfg.Cache.Type = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unsupported cache type")
	}
}

func clearWadoEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				if len(e) > 5 && e[:5] == "WADO_" {
					os.Unsetenv(e[:i])
				}
				break
			}
		}
	}
}
