package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatmatch/pkg/types"
)

type mockRegistry struct{}

func (m *mockRegistry) GetStats() map[string]int {
	return map[string]int{"total_connections": 3, "waiting": 1, "matched": 2, "active_sessions": 1}
}

type mockStatsStore struct {
	healthErr  error
	summaryErr error
	lastLimit  int
}

func (m *mockStatsStore) RecordSessionStart(record types.SessionRecord)                       {}
func (m *mockStatsStore) RecordSessionEnd(sessionID string, endedAt time.Time, reason string) {}
func (m *mockStatsStore) SessionSummary(ctx context.Context) (*types.SessionSummary, error) {
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	return &types.SessionSummary{TotalSessions: 5, EndedSessions: 4, AverageDurationSeconds: 42.5}, nil
}
func (m *mockStatsStore) TopInterests(ctx context.Context, limit int) ([]types.InterestCount, error) {
	m.lastLimit = limit
	return []types.InterestCount{{Interest: "Music", Sessions: 3}}, nil
}
func (m *mockStatsStore) HealthCheck(ctx context.Context) error { return m.healthErr }
func (m *mockStatsStore) Close() error                          { return nil }

func serve(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestServer_HealthCheck(t *testing.T) {
	server := NewServer(&mockStatsStore{}, &mockRegistry{}, nil, nil)
	w := serve(server, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || resp.Database != "healthy" {
		t.Errorf("unexpected health response: %+v", resp)
	}
	if resp.Connections["total_connections"] != 3 {
		t.Errorf("connections = %v", resp.Connections)
	}
}

func TestServer_HealthCheckWithoutStats(t *testing.T) {
	server := NewServer(nil, &mockRegistry{}, nil, nil)
	w := serve(server, http.MethodGet, "/health", nil)

	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Database != "disabled" {
		t.Errorf("disabled store should report healthy/disabled, got %d %+v", w.Code, resp)
	}
}

func TestServer_HealthCheckUnhealthy(t *testing.T) {
	server := NewServer(&mockStatsStore{healthErr: errors.New("disk gone")}, &mockRegistry{}, nil, nil)
	w := serve(server, http.MethodGet, "/health", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestServer_Stats(t *testing.T) {
	store := &mockStatsStore{}
	server := NewServer(store, &mockRegistry{}, nil, nil)
	w := serve(server, http.MethodGet, "/api/stats?top=3", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalSessions == nil || *resp.TotalSessions != 5 {
		t.Errorf("total_sessions = %v", resp.TotalSessions)
	}
	if len(resp.TopInterests) != 1 || resp.TopInterests[0].Interest != "Music" {
		t.Errorf("top_interests = %v", resp.TopInterests)
	}
	if store.lastLimit != 3 {
		t.Errorf("limit passed to store = %d, want 3", store.lastLimit)
	}
	if resp.Connections["active_sessions"] != 1 {
		t.Errorf("connections = %v", resp.Connections)
	}
}

func TestServer_StatsWithoutStore(t *testing.T) {
	server := NewServer(nil, &mockRegistry{}, nil, nil)
	w := serve(server, http.MethodGet, "/api/stats", nil)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["total_sessions"]; ok {
		t.Error("persisted aggregates must be omitted when statistics are disabled")
	}
	if _, ok := body["connections"]; !ok {
		t.Error("live connection counts are always present")
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		server *Server
		method string
		target string
		want   int
	}{
		{"bad top", NewServer(nil, &mockRegistry{}, nil, nil), http.MethodGet, "/api/stats?top=abc", http.StatusBadRequest},
		{"top out of range", NewServer(nil, &mockRegistry{}, nil, nil), http.MethodGet, "/api/stats?top=1000", http.StatusBadRequest},
		{"wrong method", NewServer(nil, &mockRegistry{}, nil, nil), http.MethodPost, "/api/stats", http.StatusMethodNotAllowed},
		{"store failure", NewServer(&mockStatsStore{summaryErr: errors.New("locked")}, &mockRegistry{}, nil, nil), http.MethodGet, "/api/stats", http.StatusInternalServerError},
		{"unknown route", NewServer(nil, &mockRegistry{}, nil, nil), http.MethodGet, "/api/sessions", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.server, tt.method, tt.target, nil)
			if w.Code != tt.want {
				t.Fatalf("Expected status %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusNotFound {
				return
			}
			var errorResp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errorResp); err != nil || errorResp.Code != tt.want {
				t.Errorf("Expected JSON error response, got %s", w.Body.String())
			}
		})
	}
}

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "http://any.example", "*"},
		{"matching origin echoed", []string{"http://a.example", "http://b.example"}, "http://b.example", "http://b.example"},
		{"unlisted origin gets first", []string{"http://a.example", "http://b.example"}, "http://evil.example", "http://a.example"},
		{"no allowed origins", nil, "http://a.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(nil, &mockRegistry{}, tt.allowed, nil)
			w := serve(server, http.MethodOptions, "/api/stats", http.Header{
				"Origin":                        []string{tt.origin},
				"Access-Control-Request-Method": []string{"GET"},
			})
			if w.Code != http.StatusOK {
				t.Errorf("preflight status = %d", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
