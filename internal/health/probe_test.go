package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/widyaops/confdeploy/internal/health"
)

func TestHTTPProbe_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := health.NewHTTPProbe(srv.URL, time.Second)
	if err := probe.Check(context.Background()); err != nil {
		t.Errorf("expected healthy probe, got %v", err)
	}
}

func TestHTTPProbe_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	probe := health.NewHTTPProbe(srv.URL, time.Second)
	if err := probe.Check(context.Background()); err == nil {
		t.Error("expected probe failure for 503")
	}
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	// Port 1 should refuse connections.
	probe := health.NewHTTPProbe("http://127.0.0.1:1", 200*time.Millisecond)
	if err := probe.Check(context.Background()); err == nil {
		t.Error("expected probe failure for unreachable endpoint")
	}
}

func TestHTTPProbe_ExplicitPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/live" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := health.NewHTTPProbe(srv.URL+"/status/live", time.Second)
	if err := probe.Check(context.Background()); err != nil {
		t.Errorf("expected healthy probe with explicit path, got %v", err)
	}
}
