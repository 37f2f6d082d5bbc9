package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck probes one backend (snapshot store, catalog, publisher) for readiness.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the probe runner.
type DependencyHealthOption func(*probeRunner)

// WithDependencyTimeout overrides the timeout used when a check sets none.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(r *probeRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithDependencyClock injects a clock for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(r *probeRunner) {
		if clock != nil {
			r.now = clock
		}
	}
}

type probeRunner struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

var _ HealthRepository = (*probeRunner)(nil)

// NewDependencyHealthRepository validates the checks and returns a HealthRepository running them concurrently.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	runner := &probeRunner{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner, nil
}

// Collect runs every probe and folds the results: any error wins over degraded, degraded over ok.
func (r *probeRunner) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	results := make(map[string]domain.SystemHealthCheck, len(r.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range r.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := r.probe(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.SystemHealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *probeRunner) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(probeCtx)
	end := r.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil && probeCtx.Err() != nil {
		err = probeCtx.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		result.Status, result.Detail, result.Error = domain.HealthStatusError, "cancelled", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.Detail, result.Error = domain.HealthStatusError, "timeout", err.Error()
	default:
		result.Status, result.Detail, result.Error = domain.HealthStatusDegraded, err.Error(), err.Error()
	}
	return result
}
