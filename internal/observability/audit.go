// Package observability provides the audit log fed by the governance
// pipeline. Entries are structured zerolog records; when a trace is active the
// trace id is attached and the entry is mirrored as a span event.
package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent represents a structured event for the audit log.
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"` // "success", "failure", "pending"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger records governance events: tool calls, tool results, and
// approval lifecycle transitions.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewAuditLogger writes audit entries to w.
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// NewFileAuditLogger appends audit entries to the file at path.
func NewFileAuditLogger(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// Log emits a generic audit event.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.TraceID != "" {
		entry = entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry = entry.Interface("metadata", event.Metadata)
	}
	entry.Msg("")
}

// LogToolCall records the start of a tool invocation.
func (a *AuditLogger) LogToolCall(ctx context.Context, actorID, tool, integrationID string, inputs map[string]interface{}, sessionID, workspaceID string) {
	a.Log(ctx, AuditEvent{
		Type:   "tool",
		Actor:  actorID,
		Action: "call:" + tool,
		Status: "pending",
		Metadata: map[string]interface{}{
			"integration_id": integrationID,
			"inputs":         inputs,
			"session_id":     sessionID,
			"workspace_id":   workspaceID,
		},
	})
}

// LogToolResult records the outcome of a tool invocation.
func (a *AuditLogger) LogToolResult(ctx context.Context, actorID, tool, integrationID string, outputs interface{}, durationMs int64, success bool, errMessage, sessionID, workspaceID string) {
	status := "success"
	if !success {
		status = "failure"
	}
	md := map[string]interface{}{
		"integration_id": integrationID,
		"outputs":        outputs,
		"duration_ms":    durationMs,
		"session_id":     sessionID,
		"workspace_id":   workspaceID,
	}
	if errMessage != "" {
		md["error"] = errMessage
	}
	a.Log(ctx, AuditEvent{
		Type:     "tool",
		Actor:    actorID,
		Action:   "result:" + tool,
		Status:   status,
		Metadata: md,
	})
}

// Close closes the audit logger's file handle, if any.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
