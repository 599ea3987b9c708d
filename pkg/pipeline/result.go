package pipeline

// ErrKind classifies a governance denial or failure surfaced to the caller.
type ErrKind string

const (
	ErrRateLimited      ErrKind = "rate_limited"
	ErrApprovalRequired ErrKind = "approval_required"
	ErrToolNotFound     ErrKind = "tool_not_found"
	ErrExecution        ErrKind = "execution_error"
)

// Result is the tagged outcome of a governed invocation: either a payload or
// a typed error shape. Rate-limit and approval denials are recovered locally
// into a Result so the agent loop can surface the hint to the end user; they
// are never Go errors.
type Result struct {
	OK                bool        `json:"ok"`
	Payload           interface{} `json:"payload,omitempty"`
	Kind              ErrKind     `json:"kind,omitempty"`
	Message           string      `json:"message,omitempty"`
	Hint              string      `json:"hint,omitempty"`
	RetryAfterSeconds int         `json:"retry_after_seconds,omitempty"`
	GateID            string      `json:"gate_id,omitempty"`
}

// Ok wraps a success payload.
func Ok(payload interface{}) Result {
	return Result{OK: true, Payload: payload}
}

// Err builds a typed failure result. Message must be safe to show to the end
// user: no stack traces, only the intended human message.
func Err(kind ErrKind, message string) Result {
	return Result{Kind: kind, Message: message}
}
