package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"snapshots": {Status: domain.HealthStatusOK},
				"catalog":   {Status: domain.HealthStatusDegraded},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Version: "1.2.3", CommitSHA: "abc123", Environment: "prod", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("unexpected build metadata: %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generated at %s, got %s", now, report.GeneratedAt)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
}

func TestSystemServiceHealthReportPropagatesErrors(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("boom")}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if repo.calls != 1 {
		t.Fatalf("expected one collect call, got %d", repo.calls)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected error for missing repository")
	}
}
