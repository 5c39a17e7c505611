package pipeline

import "time"

// ExecutionContext is the per-request record threaded through every stage: a
// new one is created per request by the caller (normally right after the
// Scheduler picks an instance) and mutated only by the goroutine owning the
// request. It never outlives the request.
type ExecutionContext struct {
	ExecutionID  string
	RequestID    string
	SessionID    string
	PipelineID   string
	InstanceID   string
	StartEpochMs int64
	RetryCount   int
	Stage        string
	Timings      map[string]time.Duration
	PromptTokens int
}

// NewExecutionContext starts a fresh ExecutionContext with StartEpochMs
// stamped to now.
func NewExecutionContext(executionID, requestID, sessionID, pipelineID, instanceID string) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID:  executionID,
		RequestID:    requestID,
		SessionID:    sessionID,
		PipelineID:   pipelineID,
		InstanceID:   instanceID,
		StartEpochMs: time.Now().UnixMilli(),
		Timings:      make(map[string]time.Duration),
	}
}

// Deadline returns the hard wall-clock deadline for this execution given an
// overall executionTimeout budget.
func (ec *ExecutionContext) Deadline(executionTimeout time.Duration) time.Time {
	return time.UnixMilli(ec.StartEpochMs).Add(executionTimeout)
}

// enter records ec.Stage and returns a func to call on stage exit, which
// records the elapsed time under that stage's name in ec.Timings.
func (ec *ExecutionContext) enter(stage string) func() {
	ec.Stage = stage
	start := time.Now()
	return func() {
		ec.Timings[stage] = time.Since(start)
	}
}
