// Package approval implements the approval gate state machine: sensitive tool
// invocations are parked behind a pending gate until a human approves,
// rejects, or the gate expires. Expiry is lazy (applied when a gate is read);
// the Sweeper provides a scheduled sweep for gates nobody queries.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/internal/observability"
	"github.com/keshwara/gatekit/pkg/store"
)

// DefaultExpirationMinutes is how long a gate stays pending before expiry.
const DefaultExpirationMinutes = 60

// Auditor receives approval lifecycle events.
type Auditor interface {
	Log(ctx context.Context, event observability.AuditEvent)
}

// Manager creates, persists and transitions approval gates, and maintains the
// per-scope pending indexes.
type Manager struct {
	st         store.Store
	audit      Auditor
	policy     *Policy
	expiration time.Duration
	now        func() time.Time
}

// Options configures a Manager.
type Options struct {
	Policy            *Policy
	ExpirationMinutes int
}

// NewManager creates a manager persisting gates to st. audit may be nil.
func NewManager(st store.Store, audit Auditor, opts Options) *Manager {
	if opts.Policy == nil {
		opts.Policy = &Policy{}
	}
	opts.Policy.Compile()
	if opts.ExpirationMinutes <= 0 {
		opts.ExpirationMinutes = DefaultExpirationMinutes
	}

	return &Manager{
		st:         st,
		audit:      audit,
		policy:     opts.Policy,
		expiration: time.Duration(opts.ExpirationMinutes) * time.Minute,
		now:        time.Now,
	}
}

// RequiresApproval reports whether an invocation matches the approval policy.
func (m *Manager) RequiresApproval(tool, integrationID string, inputs map[string]interface{}) bool {
	return m.policy.Matches(tool, integrationID, inputs)
}

// RequestApproval opens a new pending gate and indexes it under its scope.
func (m *Manager) RequestApproval(ctx context.Context, req Request) (*Gate, error) {
	now := m.now()
	gate := &Gate{
		ID:            uuid.New().String(),
		Action:        req.Action,
		Tool:          req.Tool,
		IntegrationID: req.IntegrationID,
		Inputs:        req.Inputs,
		RequesterID:   req.RequesterID,
		WorkspaceID:   req.WorkspaceID,
		SessionID:     req.SessionID,
		CreatedAt:     now,
		Status:        StatusPending,
		ExpiresAt:     now.Add(m.expiration),
	}

	if err := store.SetJSON(ctx, m.st, gateKey(gate.ID), gate); err != nil {
		return nil, fmt.Errorf("failed to persist approval gate: %w", err)
	}
	if err := m.indexAdd(ctx, gate.Scope(), gate.ID); err != nil {
		return nil, err
	}

	m.auditGate(ctx, gate, "approval_requested", "pending")
	log.Info().
		Str("gate", gate.ID).
		Str("tool", gate.Tool).
		Str("requester", gate.RequesterID).
		Time("expires_at", gate.ExpiresAt).
		Msg("Approval requested")

	return gate, nil
}

// CheckApproval loads a gate, applying lazy expiry: a pending gate past its
// deadline transitions to expired, is persisted, and leaves its pending index.
func (m *Manager) CheckApproval(ctx context.Context, id string) (*Gate, error) {
	var gate Gate
	found, err := store.GetJSON(ctx, m.st, gateKey(id), &gate)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval gate: %w", err)
	}
	if !found {
		return nil, ErrGateNotFound
	}

	if gate.Status == StatusPending && m.now().After(gate.ExpiresAt) {
		gate.Status = StatusExpired
		if err := store.SetJSON(ctx, m.st, gateKey(id), &gate); err != nil {
			return nil, fmt.Errorf("failed to expire approval gate: %w", err)
		}
		if err := m.indexRemove(ctx, gate.Scope(), id); err != nil {
			return nil, err
		}
		m.auditGate(ctx, &gate, "approval_expired", "failure")
		log.Info().Str("gate", id).Msg("Approval gate expired")
	}

	return &gate, nil
}

// Approve transitions a pending gate to approved. It fails loudly when the
// gate is missing, already decided, or expired.
func (m *Manager) Approve(ctx context.Context, id, approverID string) (*Gate, error) {
	gate, err := m.decide(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	gate.Status = StatusApproved
	gate.ApproverID = approverID
	gate.DecidedAt = &now

	if err := m.finalize(ctx, gate); err != nil {
		return nil, err
	}

	m.auditGate(ctx, gate, "approval_granted", "success")
	log.Info().Str("gate", id).Str("approver", approverID).Msg("Approval granted")
	return gate, nil
}

// Reject transitions a pending gate to rejected with an optional reason.
func (m *Manager) Reject(ctx context.Context, id, rejecterID, reason string) (*Gate, error) {
	gate, err := m.decide(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	gate.Status = StatusRejected
	gate.RejecterID = rejecterID
	gate.DecidedAt = &now
	gate.Reason = reason

	if err := m.finalize(ctx, gate); err != nil {
		return nil, err
	}

	m.auditGate(ctx, gate, "approval_rejected", "failure")
	log.Info().Str("gate", id).Str("rejecter", rejecterID).Str("reason", reason).Msg("Approval rejected")
	return gate, nil
}

// decide loads a gate and verifies it is still decidable.
func (m *Manager) decide(ctx context.Context, id string) (*Gate, error) {
	gate, err := m.CheckApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	switch gate.Status {
	case StatusPending:
		return gate, nil
	case StatusExpired:
		return nil, fmt.Errorf("%w: %s", ErrGateExpired, id)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrGateAlreadyDecided, id, gate.Status)
	}
}

func (m *Manager) finalize(ctx context.Context, gate *Gate) error {
	if err := store.SetJSON(ctx, m.st, gateKey(gate.ID), gate); err != nil {
		return fmt.Errorf("failed to persist approval decision: %w", err)
	}
	return m.indexRemove(ctx, gate.Scope(), gate.ID)
}

// ListPending resolves every id in the scope's pending index through
// CheckApproval (applying lazy expiry) and returns the still-pending gates.
func (m *Manager) ListPending(ctx context.Context, scope string) ([]*Gate, error) {
	if scope == "" {
		scope = GlobalScope
	}

	var idx pendingIndex
	found, err := store.GetJSON(ctx, m.st, indexKey(scope), &idx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending index: %w", err)
	}
	if !found {
		return nil, nil
	}

	var pending []*Gate
	for _, id := range idx.IDs {
		gate, err := m.CheckApproval(ctx, id)
		if errors.Is(err, ErrGateNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if gate.Status == StatusPending {
			pending = append(pending, gate)
		}
	}
	return pending, nil
}

// CleanupExpired sweeps every stored gate and expires the pending ones past
// their deadline. Returns the number expired.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	records, err := m.st.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list approval gates: %w", err)
	}

	expired := 0
	now := m.now()
	for _, raw := range records {
		var gate Gate
		if err := unmarshalGate(raw, &gate); err != nil || gate.ID == "" {
			continue
		}
		if gate.Status != StatusPending || !now.After(gate.ExpiresAt) {
			continue
		}
		if _, err := m.CheckApproval(ctx, gate.ID); err != nil {
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		log.Info().Int("count", expired).Msg("Expired approval gates cleaned up")
	}
	return expired, nil
}

func (m *Manager) indexAdd(ctx context.Context, scope, id string) error {
	var idx pendingIndex
	if _, err := store.GetJSON(ctx, m.st, indexKey(scope), &idx); err != nil {
		return fmt.Errorf("failed to load pending index: %w", err)
	}
	idx.Scope = scope
	idx.IDs = append(idx.IDs, id)
	if err := store.SetJSON(ctx, m.st, indexKey(scope), &idx); err != nil {
		return fmt.Errorf("failed to update pending index: %w", err)
	}
	return nil
}

func (m *Manager) indexRemove(ctx context.Context, scope, id string) error {
	var idx pendingIndex
	found, err := store.GetJSON(ctx, m.st, indexKey(scope), &idx)
	if err != nil {
		return fmt.Errorf("failed to load pending index: %w", err)
	}
	if !found {
		return nil
	}
	kept := idx.IDs[:0]
	for _, existing := range idx.IDs {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	idx.IDs = kept
	if err := store.SetJSON(ctx, m.st, indexKey(scope), &idx); err != nil {
		return fmt.Errorf("failed to update pending index: %w", err)
	}
	return nil
}

func (m *Manager) auditGate(ctx context.Context, gate *Gate, action, status string) {
	if m.audit == nil {
		return
	}
	m.audit.Log(ctx, observability.AuditEvent{
		Type:   "approval",
		Actor:  gate.RequesterID,
		Action: action,
		Status: status,
		Metadata: map[string]interface{}{
			"gate_id":        gate.ID,
			"tool":           gate.Tool,
			"integration_id": gate.IntegrationID,
			"workspace_id":   gate.WorkspaceID,
			"approver_id":    gate.ApproverID,
			"rejecter_id":    gate.RejecterID,
			"reason":         gate.Reason,
		},
	})
}

func unmarshalGate(raw json.RawMessage, g *Gate) error {
	return json.Unmarshal(raw, g)
}

func gateKey(id string) string  { return "gate:" + id }
func indexKey(sc string) string { return "pending:" + sc }
