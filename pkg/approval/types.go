package approval

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an approval gate. Transitions are
// monotonic: pending may move to approved, rejected or expired; terminal
// states never change again.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// GlobalScope is the pending-index scope for gates without a workspace.
const GlobalScope = "global"

// Management errors. These are thrown to the direct caller (a command
// handler) rather than folded into a tool-shaped result: they represent
// operator mistakes, not steady-state conditions.
var (
	ErrGateNotFound       = errors.New("approval gate not found")
	ErrGateAlreadyDecided = errors.New("approval gate already decided")
	ErrGateExpired        = errors.New("approval gate expired")
)

// Gate is one pending-human-decision record blocking a tool invocation.
type Gate struct {
	ID            string                 `json:"id"`
	Action        string                 `json:"action"`
	Tool          string                 `json:"tool"`
	IntegrationID string                 `json:"integration_id"`
	Inputs        map[string]interface{} `json:"inputs,omitempty"`
	RequesterID   string                 `json:"requester_id"`
	WorkspaceID   string                 `json:"workspace_id,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Status        Status                 `json:"status"`
	ApproverID    string                 `json:"approver_id,omitempty"`
	RejecterID    string                 `json:"rejecter_id,omitempty"`
	DecidedAt     *time.Time             `json:"decided_at,omitempty"`
	ExpiresAt     time.Time              `json:"expires_at"`
	Reason        string                 `json:"reason,omitempty"`
}

// Scope returns the pending-index scope the gate belongs to.
func (g *Gate) Scope() string {
	if g.WorkspaceID != "" {
		return g.WorkspaceID
	}
	return GlobalScope
}

// Request carries everything needed to open a gate.
type Request struct {
	Action        string
	Tool          string
	IntegrationID string
	Inputs        map[string]interface{}
	RequesterID   string
	WorkspaceID   string
	SessionID     string
}

// pendingIndex is the persisted list of pending gate ids for one scope.
type pendingIndex struct {
	Scope string   `json:"scope"`
	IDs   []string `json:"ids"`
}
