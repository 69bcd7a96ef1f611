package handler

import (
	"net/http"
	"testing"

	"github.com/commitlog/dailyagent/internal/calendar"
)

func TestGetUserStatsAndLogs(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "dev@example.com", "dev")

	env.connector.source.commits = commitsAtNoon(t, calendar.Date(2025, 1, 14), 3)
	if rr := env.do(t, http.MethodPost, "/api/verify", map[string]interface{}{"email": "dev@example.com", "date": "2025-01-14"}); rr.Code != http.StatusOK {
		t.Fatalf("verify 01-14: %d %s", rr.Code, rr.Body.String())
	}
	env.connector.source.commits = nil
	if rr := env.do(t, http.MethodPost, "/api/verify", map[string]interface{}{"email": "dev@example.com", "date": "2025-01-15"}); rr.Code != http.StatusOK {
		t.Fatalf("verify 01-15: %d %s", rr.Code, rr.Body.String())
	}

	rr := env.do(t, http.MethodGet, "/api/users/DEV@example.com/stats?days=7", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	stats := decodeBody(t, rr)
	if stats["total_days_checked"] != float64(2) || stats["passed_days"] != float64(1) || stats["failed_days"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}
	if stats["pass_rate"] != float64(50) || stats["total_commits"] != float64(3) {
		t.Fatalf("unexpected stats %v", stats)
	}

	rr = env.do(t, http.MethodGet, "/api/users/dev@example.com/logs?limit=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	logs, ok := decodeBody(t, rr)["logs"].([]interface{})
	if !ok || len(logs) != 1 {
		t.Fatalf("expected one log, got %s", rr.Body.String())
	}
	latest := logs[0].(map[string]interface{})
	if latest["date"] != "2025-01-15" || latest["status"] != "verified-fail" {
		t.Fatalf("expected newest failing day first, got %v", latest)
	}
}

func TestUserEndpointsRejectBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "dev@example.com", "dev")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "unknown user", path: "/api/users/ghost@example.com/stats", status: http.StatusNotFound},
		{name: "zero days", path: "/api/users/dev@example.com/stats?days=0", status: http.StatusBadRequest},
		{name: "non numeric limit", path: "/api/users/dev@example.com/logs?limit=abc", status: http.StatusBadRequest},
		{name: "large limit is clamped", path: "/api/users/dev@example.com/logs?limit=1000", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, nil)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}
