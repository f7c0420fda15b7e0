package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openesl/eslgate/internal/gateway"
	"github.com/openesl/eslgate/internal/label"
)

func TestNewRequiresDeps(t *testing.T) {
	registry := label.NewRegistry(time.Hour)
	sim := gateway.NewSimulator(gateway.SimulatorConfig{Registry: registry, Interval: time.Minute, MaxDecay: 2})
	super := gateway.NewSupervisor(gateway.SupervisorConfig{Registry: registry, Simulator: sim})
	engine := gateway.NewEngine(gateway.EngineConfig{Registry: registry, Super: super})

	valid := Deps{
		Logger:   testLogger(),
		Registry: registry,
		Super:    super,
		Engine:   engine,
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"missing logger", func(d *Deps) { d.Logger = nil }},
		{"missing registry", func(d *Deps) { d.Registry = nil }},
		{"missing supervisor", func(d *Deps) { d.Super = nil }},
		{"missing engine", func(d *Deps) { d.Engine = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := valid
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	if _, err := New(valid); err != nil {
		t.Errorf("New() with all deps: %v", err)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want client value echoed", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing, want generated ID")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/etiquetas", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestCORSOriginRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	srv.cfg.CORS.AllowedOrigins = []string{"http://dashboard.local"}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want no CORS headers for unknown origin", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := srv.recoveryMiddleware(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/etiquetas", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 after panic", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start: error = nil, want not-started error")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck with cancelled context: error = nil, want error")
	}
}

func TestCloseBeforeStart(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start: %v", err)
	}
}

func TestJoinOrDefault(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty uses default", nil, "GET, POST"},
		{"single value", []string{"GET"}, "GET"},
		{"multiple values", []string{"GET", "POST", "DELETE"}, "GET, POST, DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinOrDefault(tt.values, "GET, POST"); got != tt.want {
				t.Errorf("joinOrDefault(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "http://anywhere.example", true},
		{"wildcard allows all", []string{"*"}, "http://anywhere.example", true},
		{"exact match", []string{"http://dashboard.local"}, "http://dashboard.local", true},
		{"mismatch", []string{"http://dashboard.local"}, "http://other.local", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.cfg.CORS.AllowedOrigins = tt.allowed
			if got := srv.isAllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("isAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
