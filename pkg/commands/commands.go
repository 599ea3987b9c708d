// Package commands is the operator-facing surface consumed by a chat-command
// layer: tool listing and stats, approval decisions, rate-limit overrides,
// and monitoring toggles. Methods delegate to the governance components;
// approval-management errors pass through to the caller unchanged.
package commands

import (
	"context"

	"github.com/keshwara/gatekit/pkg/approval"
	"github.com/keshwara/gatekit/pkg/monitor"
	"github.com/keshwara/gatekit/pkg/ratelimit"
	"github.com/keshwara/gatekit/pkg/registry"
)

// Service bundles the governance components behind command handlers.
type Service struct {
	Registry  *registry.Registry
	Limiter   *ratelimit.Limiter
	Approvals *approval.Manager
	Monitor   *monitor.Monitor
}

// NewService creates the command surface.
func NewService(reg *registry.Registry, lim *ratelimit.Limiter, app *approval.Manager, mon *monitor.Monitor) *Service {
	return &Service{Registry: reg, Limiter: lim, Approvals: app, Monitor: mon}
}

// ListTools returns every registered tool in registration order.
func (s *Service) ListTools() []*registry.ToolRecord {
	return s.Registry.List()
}

// SearchTools runs the ranked search.
func (s *Service) SearchTools(query string, limit int) []registry.SearchResult {
	return s.Registry.Search(query, limit)
}

// ToolStats returns registry totals plus the per-period metrics for a tool.
func (s *Service) ToolStats(tool string) (registry.Stats, []*monitor.Metrics) {
	stats := s.Registry.Stats()

	var mets []*monitor.Metrics
	rec, ok := s.Registry.Get(tool)
	if !ok {
		return stats, nil
	}
	for _, period := range []monitor.Period{monitor.PeriodHour, monitor.PeriodDay, monitor.PeriodWeek} {
		if met, ok := s.Monitor.Metrics(tool, rec.IntegrationID, period); ok {
			mets = append(mets, met)
		}
	}
	return stats, mets
}

// ListPendingApprovals returns still-pending gates for a scope.
func (s *Service) ListPendingApprovals(ctx context.Context, scope string) ([]*approval.Gate, error) {
	return s.Approvals.ListPending(ctx, scope)
}

// Approve decides a gate. Errors (missing, decided, expired) pass through.
func (s *Service) Approve(ctx context.Context, gateID, approverID string) (*approval.Gate, error) {
	return s.Approvals.Approve(ctx, gateID, approverID)
}

// Reject decides a gate negatively. Errors pass through.
func (s *Service) Reject(ctx context.Context, gateID, rejecterID, reason string) (*approval.Gate, error) {
	return s.Approvals.Reject(ctx, gateID, rejecterID, reason)
}

// GetLimits returns the effective limits for a tool.
func (s *Service) GetLimits(tool string) ratelimit.Limits {
	return s.Limiter.LimitsFor(tool)
}

// SetLimitOverride replaces a tool's limits wholesale.
func (s *Service) SetLimitOverride(tool string, limits ratelimit.Limits) {
	s.Limiter.SetOverride(tool, limits)
}

// MonitoringStatus reports whether outcome recording is active.
func (s *Service) MonitoringStatus() bool {
	return s.Monitor.Enabled()
}

// EnableMonitoring turns outcome recording on.
func (s *Service) EnableMonitoring() {
	s.Monitor.SetEnabled(true)
}

// DisableMonitoring turns outcome recording off.
func (s *Service) DisableMonitoring() {
	s.Monitor.SetEnabled(false)
}

// LatestAnomalies returns the last detection snapshot.
func (s *Service) LatestAnomalies(ctx context.Context) ([]monitor.Anomaly, error) {
	return s.Monitor.LatestAnomalies(ctx)
}
