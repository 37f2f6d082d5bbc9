package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/repositories"
	"github.com/tavola-kitchen/api/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

type readyBody struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
	Checks      map[string]struct {
		Status    string `json:"status"`
		Error     string `json:"error"`
		LatencyMS int64  `json:"latencyMs"`
		CheckedAt string `json:"checkedAt"`
	} `json:"checks"`
	Details []string `json:"details"`
}

func serveReady(t *testing.T, h *HealthHandlers) (int, readyBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body readyBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v (%s)", err, rr.Body.String())
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
	return rr.Code, body
}

func TestHealthHandlersHealthzReportsUptime(t *testing.T) {
	start := time.Date(2024, 5, 4, 11, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2024.05.1", CommitSHA: "9f1c2e", Environment: "staging", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	want := map[string]string{
		"status":      domain.HealthStatusOK,
		"version":     "2024.05.1",
		"commitSha":   "9f1c2e",
		"environment": "staging",
		"uptime":      "1m30s",
		"timestamp":   "2024-05-04T11:01:30Z",
	}
	if !reflect.DeepEqual(body, want) {
		t.Fatalf("unexpected healthz body: %v", body)
	}
}

func TestHealthHandlersReadyzDependencyStates(t *testing.T) {
	checkedAt := time.Date(2024, 5, 4, 11, 5, 0, 0, time.UTC)
	ok := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: "ok", Latency: 12 * time.Millisecond, CheckedAt: checkedAt}

	cases := []struct {
		name        string
		status      string
		checks      map[string]domain.SystemHealthCheck
		wantCode    int
		wantDetails []string
	}{
		{
			name:   "all dependencies ready",
			status: domain.HealthStatusOK,
			checks: map[string]domain.SystemHealthCheck{
				"snapshots": ok,
				"catalog":   ok,
				"orders":    ok,
				"firestore": ok,
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "order topic missing",
			status: domain.HealthStatusDegraded,
			checks: map[string]domain.SystemHealthCheck{
				"snapshots": ok,
				"orders":    {Status: domain.HealthStatusDegraded, Detail: "pubsub: topic orders not found", Error: "pubsub: topic orders not found"},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantDetails: []string{"orders: pubsub: topic orders not found"},
		},
		{
			name:   "snapshot store timeout and catalog object gone",
			status: domain.HealthStatusError,
			checks: map[string]domain.SystemHealthCheck{
				"snapshots": {Status: domain.HealthStatusError, Detail: "timeout", Error: "context deadline exceeded"},
				"catalog":   {Status: domain.HealthStatusDegraded, Detail: "storage: object doesn't exist"},
				"orders":    ok,
			},
			wantCode:    http.StatusServiceUnavailable,
			wantDetails: []string{"catalog: storage: object doesn't exist", "snapshots: context deadline exceeded"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandlers(
				WithHealthBuildInfo(services.BuildInfo{Version: "2024.05.1", Environment: "staging"}),
				WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
					Status:      tc.status,
					Checks:      tc.checks,
					Uptime:      5 * time.Minute,
					GeneratedAt: checkedAt,
				}}),
			)

			code, body := serveReady(t, h)
			if code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, code)
			}
			if body.Status != tc.status {
				t.Fatalf("expected status %s, got %s", tc.status, body.Status)
			}
			if body.Version != "2024.05.1" || body.Uptime != "5m0s" || body.Timestamp != "2024-05-04T11:05:00Z" {
				t.Fatalf("unexpected metadata: %+v", body)
			}
			if len(body.Checks) != len(tc.checks) {
				t.Fatalf("expected %d checks, got %v", len(tc.checks), body.Checks)
			}
			for name, want := range tc.checks {
				if body.Checks[name].Status != want.Status {
					t.Fatalf("check %s: expected %s, got %s", name, want.Status, body.Checks[name].Status)
				}
			}
			if !reflect.DeepEqual(body.Details, tc.wantDetails) {
				t.Fatalf("expected details %v, got %v", tc.wantDetails, body.Details)
			}
		})
	}
}

func TestHealthHandlersReadyzRunsDependencyChecks(t *testing.T) {
	now := time.Date(2024, 5, 4, 11, 5, 0, 0, time.UTC)
	repo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "snapshots", Check: func(context.Context) error { return nil }},
		{Name: "catalog", Check: func(context.Context) error { return errors.New("storage: object doesn't exist") }},
		{Name: "orders", Timeout: 5 * time.Millisecond, Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}, repositories.WithDependencyClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}
	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build:            services.BuildInfo{Environment: "local", StartedAt: now.Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	code, body := serveReady(t, NewHealthHandlers(WithHealthSystemService(system)))
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body.Status != domain.HealthStatusError || body.Environment != "local" || body.Uptime != "1h0m0s" {
		t.Fatalf("unexpected report: %+v", body)
	}
	if body.Checks["snapshots"].Status != domain.HealthStatusOK || body.Checks["snapshots"].CheckedAt != "2024-05-04T11:05:00Z" {
		t.Fatalf("expected snapshots ok, got %+v", body.Checks["snapshots"])
	}
	if body.Checks["catalog"].Status != domain.HealthStatusDegraded {
		t.Fatalf("expected catalog degraded, got %+v", body.Checks["catalog"])
	}
	if body.Checks["orders"].Status != domain.HealthStatusError || body.Checks["orders"].Error != context.DeadlineExceeded.Error() {
		t.Fatalf("expected orders timeout, got %+v", body.Checks["orders"])
	}
	want := []string{"catalog: storage: object doesn't exist", "orders: context deadline exceeded"}
	if !reflect.DeepEqual(body.Details, want) {
		t.Fatalf("expected details %v, got %v", want, body.Details)
	}
}

func TestHealthHandlersReadyzServiceFailure(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("health repository: context is required")}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["error"] != "health_unavailable" {
		t.Fatalf("expected health_unavailable, got %v", body["error"])
	}
}

func TestHealthHandlersReadyzMirrorsLivenessWithoutSystemService(t *testing.T) {
	code, body := serveReady(t, NewHealthHandlers(WithHealthBuildInfo(services.BuildInfo{Version: "dev"})))
	if code != http.StatusOK || body.Status != domain.HealthStatusOK || body.Version != "dev" {
		t.Fatalf("expected liveness response, got %d %+v", code, body)
	}
	if body.Checks != nil {
		t.Fatalf("expected no checks, got %v", body.Checks)
	}
}
