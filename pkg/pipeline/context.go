package pipeline

import "context"

// CallContext identifies who is invoking a tool and from where.
type CallContext struct {
	ActorID     string `json:"actor_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

type callContextKey struct{}

// ContextWithCall attaches the call context for tool handlers.
func ContextWithCall(ctx context.Context, call CallContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callContextKey{}, call)
}

// CallFromContext extracts the call context, if present.
func CallFromContext(ctx context.Context) (CallContext, bool) {
	if ctx == nil {
		return CallContext{}, false
	}
	call, ok := ctx.Value(callContextKey{}).(CallContext)
	return call, ok
}
