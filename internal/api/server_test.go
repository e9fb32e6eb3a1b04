package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/engine"
	"NetFlowScope/internal/model"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(config.EngineConfig{NumShards: 16})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return NewServer(config.APIConfig{ListenAddr: ":0"}, eng, nil, nil), eng
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)
	return rec
}

func ingestUDP(eng *engine.Engine, src string, dst string, length int) {
	eng.Ingest(&model.PacketEvent{
		Timestamp: time.Now(),
		SrcIP:     net.ParseIP(src),
		DstIP:     net.ParseIP(dst),
		SrcPort:   5000,
		DstPort:   53,
		Protocol:  model.ProtoUDP,
		Length:    length,
	})
}

func TestStatusEndpoint(t *testing.T) {
	s, eng := newTestServer(t)
	ingestUDP(eng, "10.0.0.1", "10.0.0.2", 100)

	rec := doRequest(t, s, "GET", "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var summary model.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.TotalBytes != 100 || summary.LiveSessions != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestSessionsEndpointLimit(t *testing.T) {
	s, eng := newTestServer(t)
	ingestUDP(eng, "10.0.0.1", "10.0.0.2", 100)
	ingestUDP(eng, "10.0.0.3", "10.0.0.4", 100)

	rec := doRequest(t, s, "GET", "/api/v1/sessions?limit=1")
	var sessions []model.Session
	if err := json.NewDecoder(rec.Body).Decode(&sessions); err != nil {
		t.Fatalf("Failed to decode sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected the limit applied, got %d sessions", len(sessions))
	}
}

func TestTopEndpoint(t *testing.T) {
	s, eng := newTestServer(t)
	ingestUDP(eng, "10.0.0.1", "10.0.0.9", 100)
	ingestUDP(eng, "10.0.0.2", "10.0.0.9", 900)

	rec := doRequest(t, s, "GET", "/api/v1/top?limit=1&order_by=bytes")
	var stats []model.IPStatistic
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode top talkers: %v", err)
	}
	if len(stats) != 1 || stats[0].Addr != "10.0.0.9" {
		t.Errorf("Expected 10.0.0.9 as top talker, got %+v", stats)
	}
}

func TestControlEndpoints(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/v1/control/start")
	if rec.Code != http.StatusOK || !eng.Running() {
		t.Fatalf("Expected start to leave the engine running, code=%d running=%v", rec.Code, eng.Running())
	}

	// Repeated starts and stops are no-ops, not errors.
	doRequest(t, s, "POST", "/api/v1/control/start")
	doRequest(t, s, "POST", "/api/v1/control/stop")
	rec = doRequest(t, s, "POST", "/api/v1/control/stop")
	if rec.Code != http.StatusOK || eng.Running() {
		t.Fatalf("Expected stop to leave the engine stopped, code=%d running=%v", rec.Code, eng.Running())
	}
}

func TestDBEndpointsWithoutStore(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/db/sessions", "/api/v1/db/ipstats", "/api/v1/db/traffic"} {
		rec := doRequest(t, s, "GET", path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 for %s without a store, got %d", path, rec.Code)
		}
	}
}

func TestGeoEndpointWithoutLocator(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, "GET", "/api/v1/geo/8.8.8.8")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a locator, got %d", rec.Code)
	}
}
