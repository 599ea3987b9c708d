// Package pipeline is the composition point invoked once per tool call: rate
// limiting, approval gating, execution, and outcome/usage/audit recording are
// sequenced around the underlying tool implementation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/internal/metrics"
	"github.com/keshwara/gatekit/pkg/approval"
	"github.com/keshwara/gatekit/pkg/ratelimit"
	"github.com/keshwara/gatekit/pkg/registry"
)

// ToolSource is the registry surface the pipeline needs.
type ToolSource interface {
	Get(qualifiedName string) (*registry.ToolRecord, bool)
	Handler(qualifiedName string) (registry.ToolHandler, bool)
	ValidateInput(qualifiedName string, params map[string]interface{}) error
	RecordUsage(ctx context.Context, qualifiedName string) error
}

// RateLimiter is the limiter surface the pipeline needs.
type RateLimiter interface {
	Check(ctx context.Context, tool, actorID string) (ratelimit.Decision, error)
	Record(ctx context.Context, tool, actorID string) error
}

// Approvals is the gate-manager surface the pipeline needs.
type Approvals interface {
	RequiresApproval(tool, integrationID string, inputs map[string]interface{}) bool
	RequestApproval(ctx context.Context, req approval.Request) (*approval.Gate, error)
}

// OutcomeRecorder receives per-call telemetry.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, tool, integrationID string, success bool, duration time.Duration, errKind, errMessage string) error
}

// Auditor is the audit-log surface the pipeline feeds.
type Auditor interface {
	LogToolCall(ctx context.Context, actorID, tool, integrationID string, inputs map[string]interface{}, sessionID, workspaceID string)
	LogToolResult(ctx context.Context, actorID, tool, integrationID string, outputs interface{}, durationMs int64, success bool, errMessage, sessionID, workspaceID string)
}

// Pipeline sequences governance around tool execution.
type Pipeline struct {
	tools    ToolSource
	limiter  RateLimiter
	gates    Approvals
	outcomes OutcomeRecorder
	audit    Auditor
	prom     *metrics.Metrics
	now      func() time.Time
}

// New wires a pipeline. audit and prom may be nil.
func New(tools ToolSource, limiter RateLimiter, gates Approvals, outcomes OutcomeRecorder, audit Auditor, prom *metrics.Metrics) *Pipeline {
	return &Pipeline{
		tools:    tools,
		limiter:  limiter,
		gates:    gates,
		outcomes: outcomes,
		audit:    audit,
		prom:     prom,
		now:      time.Now,
	}
}

// Invoke runs one governed tool call. Rate-limit and approval denials come
// back as typed Results and never as errors; execution failures are recorded
// and then returned unchanged in err so upstream retry logic can react.
func (p *Pipeline) Invoke(ctx context.Context, toolName string, input map[string]interface{}, call CallContext) (Result, error) {
	invocationID, idErr := gonanoid.New()
	if idErr != nil {
		invocationID = "unknown"
	}
	logger := log.With().
		Str("invocation", invocationID).
		Str("tool", toolName).
		Str("actor", call.ActorID).
		Logger()

	rec, ok := p.tools.Get(toolName)
	if !ok {
		logger.Warn().Msg("Tool not found")
		return Err(ErrToolNotFound, fmt.Sprintf("tool not found: %s", toolName)), nil
	}

	decision, err := p.limiter.Check(ctx, toolName, call.ActorID)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		logger.Warn().
			Str("reason", decision.Reason).
			Int("retry_after", decision.RetryAfterSeconds).
			Msg("Invocation rate limited")
		if p.prom != nil {
			p.prom.RateLimitDenialsTotal.WithLabelValues(toolName).Inc()
		}
		if p.audit != nil {
			p.audit.LogToolResult(ctx, call.ActorID, toolName, rec.IntegrationID,
				nil, 0, false, decision.Reason, call.SessionID, call.WorkspaceID)
		}
		res := Err(ErrRateLimited, decision.Reason)
		res.RetryAfterSeconds = decision.RetryAfterSeconds
		res.Hint = fmt.Sprintf("Retry in %d seconds", decision.RetryAfterSeconds)
		return res, nil
	}

	if p.gates.RequiresApproval(toolName, rec.IntegrationID, input) {
		gate, err := p.gates.RequestApproval(ctx, approval.Request{
			Action:        "invoke:" + toolName,
			Tool:          toolName,
			IntegrationID: rec.IntegrationID,
			Inputs:        input,
			RequesterID:   call.ActorID,
			WorkspaceID:   call.WorkspaceID,
			SessionID:     call.SessionID,
		})
		if err != nil {
			return Result{}, fmt.Errorf("failed to request approval: %w", err)
		}
		if p.prom != nil {
			p.prom.ApprovalRequestsTotal.Inc()
		}
		logger.Info().Str("gate", gate.ID).Msg("Invocation parked behind approval gate")
		res := Err(ErrApprovalRequired, fmt.Sprintf("approval required for %s", toolName))
		res.GateID = gate.ID
		res.Hint = "A pending approval request was created; ask an approver to review it"
		return res, nil
	}

	if err := p.tools.ValidateInput(toolName, input); err != nil {
		logger.Warn().Err(err).Msg("Input validation failed")
		return Err(ErrExecution, err.Error()), nil
	}

	handler, ok := p.tools.Handler(toolName)
	if !ok {
		return Err(ErrToolNotFound, fmt.Sprintf("tool not found: %s", toolName)), nil
	}

	if p.audit != nil {
		p.audit.LogToolCall(ctx, call.ActorID, toolName, rec.IntegrationID,
			input, call.SessionID, call.WorkspaceID)
	}

	start := p.now()
	output, execErr := handler(ContextWithCall(ctx, call), input)
	duration := p.now().Sub(start)

	p.recordAfterExecution(ctx, toolName, rec.IntegrationID, call, output, duration, execErr, logger)

	if execErr != nil {
		res := Err(ErrExecution, execErr.Error())
		return res, execErr
	}
	return Ok(output), nil
}

// recordAfterExecution runs the post-call bookkeeping shared by the success
// and failure paths: usage count, rate counter, outcome telemetry, audit.
// Bookkeeping failures are logged, never allowed to mask the call result.
func (p *Pipeline) recordAfterExecution(ctx context.Context, toolName, integrationID string, call CallContext, output interface{}, duration time.Duration, execErr error, logger zerolog.Logger) {
	if err := p.tools.RecordUsage(ctx, toolName); err != nil {
		logger.Warn().Err(err).Msg("Failed to record tool usage")
	}
	if err := p.limiter.Record(ctx, toolName, call.ActorID); err != nil {
		logger.Warn().Err(err).Msg("Failed to record rate counter")
	}

	success := execErr == nil
	errKind, errMessage := "", ""
	if execErr != nil {
		errKind = classifyError(execErr)
		errMessage = execErr.Error()
	}
	if err := p.outcomes.RecordOutcome(ctx, toolName, integrationID, success, duration, errKind, errMessage); err != nil {
		logger.Warn().Err(err).Msg("Failed to record outcome")
	}

	if p.prom != nil {
		status := "success"
		if !success {
			status = "failure"
		}
		p.prom.ToolInvocationsTotal.WithLabelValues(toolName, status).Inc()
		p.prom.ToolInvocationSeconds.WithLabelValues(toolName).Observe(duration.Seconds())
	}

	if p.audit != nil {
		p.audit.LogToolResult(ctx, call.ActorID, toolName, integrationID,
			output, duration.Milliseconds(), success, errMessage, call.SessionID, call.WorkspaceID)
	}

	logger.Debug().
		Dur("duration", duration).
		Bool("success", success).
		Msg("Tool invocation recorded")
}

// classifyError maps an execution error to an outcome error kind.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "execution_error"
	}
}
