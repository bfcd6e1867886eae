package dashboard_test

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/firasghr/GoPotluck/config"
	"github.com/firasghr/GoPotluck/dashboard"
	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Store, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	store := session.NewStore(time.Hour)
	srv := dashboard.New(m, store, config.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store, m
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("body = %q", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.ConnectionsOpened.Add(3)
	m.SessionsCreated.Add(1)

	resp, body := get(t, ts.URL+"/api/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.ConnectionsOpened != 3 || snap.SessionsCreated != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	ts, store, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/sessions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var empty []dashboard.SessionSummary
	if err := json.Unmarshal(body, &empty); err != nil {
		t.Fatalf("unmarshal empty list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("sessions = %v, want none", empty)
	}

	s, _ := store.Create("S", "U1", "Alice")
	s.Join("U2", "Bob")
	s.AddIngredient("flour", "U1")
	s.MarkDisconnected("U2")

	_, body = get(t, ts.URL+"/api/sessions")
	var out []dashboard.SessionSummary
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sessions = %d, want 1", len(out))
	}
	sum := out[0]
	if sum.ID != "S" || sum.HostID != "U1" || sum.HostName != "Alice" {
		t.Errorf("summary identity = %+v", sum)
	}
	if sum.Participants != 2 || sum.Connected != 1 {
		t.Errorf("participants = %d connected = %d, want 2/1", sum.Participants, sum.Connected)
	}
	if sum.Ingredients != 1 || sum.Recipes != 0 {
		t.Errorf("counts = %+v", sum)
	}
	if sum.CreatedAt == 0 || sum.LastActivity == 0 {
		t.Errorf("timestamps missing: %+v", sum)
	}
}

func TestConfigEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := get(t, ts.URL+"/api/config")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var cfg config.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.SessionTTL != 4*time.Hour {
		t.Errorf("config = %+v", cfg)
	}
}

func TestMetricsStreamFirstSnapshot(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.CommandsProcessed.Add(7)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/metrics/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// The first snapshot arrives without waiting for a ticker interval.
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("line = %q", line)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.CommandsProcessed != 7 {
		t.Errorf("CommandsProcessed = %d, want 7", snap.CommandsProcessed)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/metrics", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
