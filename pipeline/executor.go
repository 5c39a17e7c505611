// Package pipeline implements the Pipeline Executor: it composes the
// Protocol Switch, Compatibility Mapper, Streaming Adapter and a resolved
// Provider Adapter into one request/response cycle against a chosen
// provider instance, enforcing a hard wall-clock deadline and propagating
// context cancellation through every stage.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relayforge/relayforge/compat"
	"github.com/relayforge/relayforge/errctr"
	"github.com/relayforge/relayforge/llm"
	"github.com/relayforge/relayforge/llm/tokenizer"
	"github.com/relayforge/relayforge/protocol"
	"github.com/relayforge/relayforge/streaming"
	"github.com/relayforge/relayforge/types"
)

// ProviderResolver resolves the concrete llm.Provider backing a pool entry's
// provider id. In production this is backed by an llm.ProviderRegistry
// populated by llm/factory.
type ProviderResolver interface {
	Resolve(providerID string) (llm.Provider, error)
}

// CapabilityResolver is an optional extension of ProviderResolver: when a
// resolver also implements this, the executor consults SupportsStreaming
// before choosing between native streaming and the collect/expand bridge.
// Every built-in llm.Provider implementation supports Stream, so absence of
// this interface is treated as "always streams."
type CapabilityResolver interface {
	SupportsStreaming(providerID string) bool
}

// RegistryResolver adapts an llm.ProviderRegistry to ProviderResolver,
// looking a provider up by the pool entry's ProviderID.
type RegistryResolver struct {
	Registry *llm.ProviderRegistry
}

// Resolve implements ProviderResolver.
func (r RegistryResolver) Resolve(providerID string) (llm.Provider, error) {
	p, ok := r.Registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("pipeline: no provider registered for id %q", providerID)
	}
	return p, nil
}

// SupportsStreaming implements CapabilityResolver by deferring to the
// registry, so RegistryResolver-backed executors skip the collect/expand
// bridge whenever the target provider is actually registered.
func (r RegistryResolver) SupportsStreaming(providerID string) bool {
	return r.Registry.SupportsStreaming(providerID)
}

// SoftPenalizer receives a notification when a request against instanceID
// misses the hard deadline, so the scheduler/error center can down-rank it
// without blacklisting outright. Optional; a nil Penalizer disables this.
type SoftPenalizer interface {
	SoftPenalize(instanceID string)
}

// Config configures an Executor.
type Config struct {
	// ExecutionTimeout is the hard wall-clock budget for one Execute/
	// ExecuteStream call, measured from ExecutionContext.StartEpochMs.
	// Defaults to 30s.
	ExecutionTimeout time.Duration
	// StageTimeout bounds the protocol switch and provider call stages;
	// the compat mapping stage runs without a timeout of its own.
	// Defaults to ExecutionTimeout.
	StageTimeout time.Duration
	// MappingTable, if non-nil, runs the Compatibility Mapper stage on the
	// outgoing canonical request. Nil skips the stage entirely.
	MappingTable *compat.MappingTable
	// Penalizer is notified on execution_timeout. Optional.
	Penalizer SoftPenalizer
	// ErrorCenter, if set, receives every stage failure as a
	// *types.PipelineError via HandleError, and the terminal outcome via
	// HandleExecutionResult. Optional.
	ErrorCenter *errctr.Center
}

// DefaultConfig returns the SPEC_FULL default timeouts.
func DefaultConfig() Config {
	return Config{ExecutionTimeout: 30 * time.Second}
}

// Executor composes the Protocol Switch, Streaming Adapter, Compatibility
// Mapper and a resolved Provider Adapter. It holds no per-call mutable
// state, so every Execute/ExecuteStream call is independent and safe to run
// concurrently from many goroutines; parallelism itself is bounded by the
// scheduler above it, not here.
type Executor struct {
	Switch    *protocol.Switch
	Mapper    *compat.Mapper
	Streaming *streaming.Adapter
	Providers ProviderResolver
	Cfg       Config
}

// New builds an Executor, filling in default timeouts when unset.
func New(sw *protocol.Switch, mapper *compat.Mapper, sa *streaming.Adapter, providers ProviderResolver, cfg Config) *Executor {
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = cfg.ExecutionTimeout
	}
	return &Executor{Switch: sw, Mapper: mapper, Streaming: sa, Providers: providers, Cfg: cfg}
}

// ErrExecutionTimeout is the sentinel wrapped into the *types.PipelineError
// returned when the hard wall-clock deadline is exceeded.
var ErrExecutionTimeout = errors.New("execution_timeout")

// Execute runs the full non-streaming pipeline against providerID:
// client dialect -> canonical -> (compat mapping) -> provider -> canonical
// -> client dialect. ec must already carry the chosen PipelineID/InstanceID
// (normally set by the Scheduler before calling in).
func (e *Executor) Execute(ctx context.Context, ec *ExecutionContext, body []byte, clientDialect, upstreamDialect protocol.Dialect, providerID string) ([]byte, error) {
	ctx, cancel := context.WithDeadline(ctx, ec.Deadline(e.Cfg.ExecutionTimeout))
	defer cancel()

	req, err := e.stageProtocolIn(ctx, ec, body, clientDialect, upstreamDialect)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "protocol_switch_in", err)
	}

	if e.Cfg.MappingTable != nil {
		if err := e.stageCompat(ctx, ec, string(clientDialect), string(upstreamDialect), req); err != nil {
			return nil, e.fail(ctx, ec, providerID, "compat_mapper", err)
		}
	}
	e.estimatePromptTokens(ec, req)

	provider, err := e.Providers.Resolve(providerID)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "provider_resolve", err)
	}

	resp, err := e.stageProvider(ctx, ec, provider, req)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "provider_adapter", err)
	}

	out, err := e.stageProtocolOut(ctx, ec, resp, upstreamDialect, clientDialect)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "protocol_switch_out", err)
	}

	e.reportSuccess(ec)
	return out, nil
}

// ExecuteStream runs the streaming pipeline against providerID. When the
// client dialect already matches the canonical shape (OpenAI), upstream
// chunks are relayed as they arrive. Otherwise no per-chunk SSE translation
// is defined yet for that dialect, so the executor falls back to collecting
// the full response, translating it once, and re-chunking the translated
// bytes opaquely (Streaming Adapter's encoded-chunk mode) so the client
// still observes incremental delivery.
func (e *Executor) ExecuteStream(ctx context.Context, ec *ExecutionContext, body []byte, clientDialect, upstreamDialect protocol.Dialect, providerID string) (<-chan streaming.Chunk, error) {
	ctx, cancel := context.WithDeadline(ctx, ec.Deadline(e.Cfg.ExecutionTimeout))

	req, err := e.stageProtocolIn(ctx, ec, body, clientDialect, upstreamDialect)
	if err != nil {
		cancel()
		return nil, e.fail(ctx, ec, providerID, "protocol_switch_in", err)
	}

	if e.Cfg.MappingTable != nil {
		if err := e.stageCompat(ctx, ec, string(clientDialect), string(upstreamDialect), req); err != nil {
			cancel()
			return nil, e.fail(ctx, ec, providerID, "compat_mapper", err)
		}
	}
	e.estimatePromptTokens(ec, req)

	provider, err := e.Providers.Resolve(providerID)
	if err != nil {
		cancel()
		return nil, e.fail(ctx, ec, providerID, "provider_resolve", err)
	}

	if clientDialect == protocol.DialectOpenAI && e.supportsStreaming(providerID) {
		return e.streamNative(ctx, cancel, ec, provider, req, providerID)
	}
	return e.streamEmulated(ctx, cancel, ec, provider, req, upstreamDialect, clientDialect, providerID)
}

func (e *Executor) supportsStreaming(providerID string) bool {
	cr, ok := e.Providers.(CapabilityResolver)
	if !ok {
		return true
	}
	return cr.SupportsStreaming(providerID)
}

// streamNative relays provider chunks as they arrive, with no collect step.
func (e *Executor) streamNative(ctx context.Context, cancel context.CancelFunc, ec *ExecutionContext, provider llm.Provider, req *llm.ChatRequest, providerID string) (<-chan streaming.Chunk, error) {
	defer ec.enter("provider_adapter_stream")()

	upstream, err := provider.Stream(ctx, req)
	if err != nil {
		cancel()
		return nil, e.fail(ctx, ec, providerID, "provider_adapter", err)
	}

	out := make(chan streaming.Chunk, 1)
	go func() {
		defer cancel()
		defer close(out)
		idx := 0
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-upstream:
				if !ok {
					e.reportSuccess(ec)
					return
				}
				if chunk.Err != nil {
					return
				}
				data, merr := json.Marshal(chunk)
				if merr != nil {
					return
				}
				c := streaming.Chunk{
					ID:    chunk.ID,
					Data:  string(data),
					Index: idx,
					Metadata: streaming.ChunkMeta{
						Timestamp: time.Now(),
						ChunkSize: len(data),
						Encoding:  "raw",
					},
				}
				idx++
				if chunk.FinishReason != "" {
					c.IsLast = true
				}
				select {
				case <-ctx.Done():
					return
				case out <- c:
				}
				if c.IsLast {
					return
				}
			}
		}
	}()
	return out, nil
}

// streamEmulated collects the full canonical response, translates it once
// into the client dialect, then re-chunks the translated bytes opaquely.
func (e *Executor) streamEmulated(ctx context.Context, cancel context.CancelFunc, ec *ExecutionContext, provider llm.Provider, req *llm.ChatRequest, upstreamDialect, clientDialect protocol.Dialect, providerID string) (<-chan streaming.Chunk, error) {
	defer cancel()

	resp, err := e.stageProvider(ctx, ec, provider, req)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "provider_adapter", err)
	}

	translated, err := e.stageProtocolOut(ctx, ec, resp, upstreamDialect, clientDialect)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "protocol_switch_out", err)
	}

	wrapped := &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: []llm.ChatChoice{{Message: llm.Message{Content: string(translated)}}},
	}
	out, _, err := e.Streaming.ExpandToStream(ctx, wrapped, true)
	if err != nil {
		return nil, e.fail(ctx, ec, providerID, "streaming_adapter", err)
	}
	e.reportSuccess(ec)
	return out, nil
}

func (e *Executor) stageProtocolIn(ctx context.Context, ec *ExecutionContext, body []byte, from, to protocol.Dialect) (*llm.ChatRequest, error) {
	defer ec.enter("protocol_switch_in")()
	sctx, cancel := context.WithTimeout(ctx, e.Cfg.StageTimeout)
	defer cancel()
	return e.Switch.ConvertRequest(sctx, body, from, to)
}

func (e *Executor) stageProtocolOut(ctx context.Context, ec *ExecutionContext, resp *llm.ChatResponse, from, to protocol.Dialect) ([]byte, error) {
	defer ec.enter("protocol_switch_out")()
	sctx, cancel := context.WithTimeout(ctx, e.Cfg.StageTimeout)
	defer cancel()
	return e.Switch.ConvertResponse(sctx, resp, from, to)
}

func (e *Executor) stageCompat(ctx context.Context, ec *ExecutionContext, from, to string, req *llm.ChatRequest) error {
	defer ec.enter("compat_mapper")()
	src, err := toMap(req)
	if err != nil {
		return fmt.Errorf("pipeline: marshal request for compat mapper: %w", err)
	}
	mapped, err := e.Mapper.ApplyForProtocol(e.Cfg.MappingTable, from, to, src)
	if err != nil {
		return err
	}
	return fromMap(mapped, req)
}

func (e *Executor) stageProvider(ctx context.Context, ec *ExecutionContext, provider llm.Provider, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	defer ec.enter("provider_adapter")()
	sctx, cancel := context.WithTimeout(ctx, e.Cfg.StageTimeout)
	defer cancel()
	return provider.Completion(sctx, req)
}

// estimatePromptTokens records a local token estimate on ec for observability
// (never sent upstream); estimation failures are silently ignored since this
// is a best-effort metric, not a correctness requirement.
func (e *Executor) estimatePromptTokens(ec *ExecutionContext, req *llm.ChatRequest) {
	msgs := tokenizer.FromChatMessages(req.Messages)
	tok := tokenizer.GetTokenizerOrEstimator(req.Model)
	if n, err := tok.CountMessages(msgs); err == nil {
		ec.PromptTokens = n
	}
}

// fail classifies err into a *types.PipelineError, reports it to the Error
// Center if configured, applies a soft penalty on timeout, and returns it.
func (e *Executor) fail(ctx context.Context, ec *ExecutionContext, providerID, stage string, err error) error {
	code := "execution_error"
	category := types.CategoryExecution
	recoverability := types.RecoverabilityRecoverable

	if ctx.Err() == context.DeadlineExceeded {
		code = "execution_timeout"
		err = fmt.Errorf("%w: stage %q exceeded deadline: %v", ErrExecutionTimeout, stage, err)
		if e.Cfg.Penalizer != nil {
			e.Cfg.Penalizer.SoftPenalize(providerID)
		}
	} else if ctx.Err() == context.Canceled {
		code = "execution_cancelled"
		recoverability = types.RecoverabilityUnrecoverable
	}

	pe := types.NewPipelineError(code, category, types.SeverityMedium, recoverability, types.ImpactSingleModule, "pipeline."+stage).
		WithCause(err).
		WithPipeline(ec.PipelineID, ec.InstanceID).
		WithDetails("execution_id", ec.ExecutionID)

	if e.Cfg.ErrorCenter != nil {
		e.Cfg.ErrorCenter.HandleError(pe, ec.RetryCount)
		e.Cfg.ErrorCenter.HandleExecutionResult(ec.PipelineID, false)
	}
	return pe
}

func (e *Executor) reportSuccess(ec *ExecutionContext) {
	if e.Cfg.ErrorCenter != nil {
		e.Cfg.ErrorCenter.HandleExecutionResult(ec.PipelineID, true)
	}
}
