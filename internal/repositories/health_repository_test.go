package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

func TestNewDependencyHealthRepositoryValidation(t *testing.T) {
	cases := map[string][]DependencyCheck{
		"no checks":    nil,
		"missing name": {{Name: " ", Check: func(context.Context) error { return nil }}},
		"missing func": {{Name: "catalog"}},
	}
	for name, checks := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewDependencyHealthRepository(checks); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestDependencyHealthRepositoryAllHealthy(t *testing.T) {
	fixed := time.Date(2025, time.May, 3, 18, 30, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "snapshots", Check: func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{Name: "catalog", Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK || !check.CheckedAt.Equal(fixed) {
			t.Fatalf("unexpected result for %s: %+v", name, check)
		}
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Fatalf("expected generatedAt %s, got %s", fixed, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryDegradedDependency(t *testing.T) {
	publishErr := errors.New("topic not found")
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "orders", Check: func(context.Context) error { return publishErr }},
		{Name: "catalog", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	check := report.Checks["orders"]
	if check.Status != domain.HealthStatusDegraded || check.Error != publishErr.Error() {
		t.Fatalf("unexpected orders check: %+v", check)
	}
	if report.Checks["catalog"].Status != domain.HealthStatusOK {
		t.Fatalf("expected catalog ok, got %+v", report.Checks["catalog"])
	}
}

func TestDependencyHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "snapshots", Timeout: 5 * time.Millisecond, Check: func(ctx context.Context) error {
			select {
			case <-time.After(50 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if detail := report.Checks["snapshots"].Detail; detail != "timeout" {
		t.Fatalf("expected timeout detail, got %s", detail)
	}
}
