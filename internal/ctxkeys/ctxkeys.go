// Package ctxkeys defines the well-known context.Context keys threaded
// through a single request's pipeline execution.
package ctxkeys

import "context"

type contextKey string

const (
	executionIDKey contextKey = "execution_id"
	requestIDKey   contextKey = "request_id"
	sessionIDKey   contextKey = "session_id"
	pipelineIDKey  contextKey = "pipeline_id"
	instanceIDKey  contextKey = "instance_id"
)

// WithExecutionID attaches the per-request ExecutionContext id.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionID reads back the ExecutionContext id set by WithExecutionID.
func ExecutionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(executionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRequestID attaches the caller-supplied or generated request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID reads back the request id set by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithSessionID attaches the sticky-routing session key (§4.9).
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID reads back the session id set by WithSessionID.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithPipelineID attaches the routing rule / pipeline template id in use.
func WithPipelineID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pipelineIDKey, id)
}

// PipelineID reads back the pipeline id set by WithPipelineID.
func PipelineID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(pipelineIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithInstanceID attaches the selected ProviderInstance id.
func WithInstanceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, instanceIDKey, id)
}

// InstanceID reads back the instance id set by WithInstanceID.
func InstanceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(instanceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
