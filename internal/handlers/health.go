package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/platform/httpx"
	"github.com/tavola-kitchen/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	now    func() time.Time
}

// HealthOption customises health handlers.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs health handlers. Without a system service readiness mirrors liveness.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the clock.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithHealthSystemService sets the service producing readiness reports.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type checkResponse struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyResponse struct {
	healthResponse
	Checks  map[string]checkResponse `json:"checks"`
	Details []string                 `json:"details,omitempty"`
}

// Healthz reports that the process is serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.now().UTC()
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz reports dependency health; anything but ok answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("health_unavailable", "readiness check failed", http.StatusServiceUnavailable))
		return
	}

	now := h.now().UTC()
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = now
	}
	resp := readyResponse{
		healthResponse: healthResponse{
			Status:      report.Status,
			Version:     firstNonEmpty(report.Version, h.build.Version),
			CommitSHA:   firstNonEmpty(report.CommitSHA, h.build.CommitSHA),
			Environment: firstNonEmpty(report.Environment, h.build.Environment),
			Uptime:      report.Uptime.Round(time.Second).String(),
			Timestamp:   generated.UTC().Format(time.RFC3339),
		},
		Checks: make(map[string]checkResponse, len(report.Checks)),
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		entry := checkResponse{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = entry
		if check.Status != domain.HealthStatusOK {
			reason := firstNonEmpty(check.Error, check.Detail, check.Status)
			resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, reason))
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, status, resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
