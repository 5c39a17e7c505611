package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/relayforge/relayforge/pipeline"
	"github.com/relayforge/relayforge/protocol"
	"github.com/relayforge/relayforge/scheduler"
	"github.com/relayforge/relayforge/types"
	"go.uber.org/zap"
)

// maxChatBodyBytes bounds a single chat-completion request body.
const maxChatBodyBytes = 1 << 20

// ChatHandler serves the OpenAI- and Anthropic-shaped entry points into the
// Scheduler + Pipeline Executor, per the admin/operational surface's
// POST /v1/chat/completions and POST /v1/messages.
type ChatHandler struct {
	scheduler *scheduler.Scheduler
	executor  *pipeline.Executor
	logger    *zap.Logger
}

// NewChatHandler wires a ChatHandler to the shared Scheduler and Pipeline Executor.
func NewChatHandler(sch *scheduler.Scheduler, exec *pipeline.Executor, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{scheduler: sch, executor: exec, logger: logger}
}

// HandleCompletions serves POST /v1/chat/completions (OpenAI dialect).
func (h *ChatHandler) HandleCompletions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, protocol.DialectOpenAI)
}

// HandleMessages serves POST /v1/messages (Anthropic dialect).
func (h *ChatHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, protocol.DialectAnthropic)
}

// serve routes and executes one chat-completion request in clientDialect,
// then writes the result back either as a single JSON body or as an SSE stream.
func (h *ChatHandler) serve(w http.ResponseWriter, r *http.Request, clientDialect protocol.Dialect) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "request body too large or unreadable", h.logger)
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid JSON body", h.logger)
		return
	}

	model, _ := raw["model"].(string)
	if model == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "model field is required", h.logger)
		return
	}
	stream, _ := raw["stream"].(bool)

	fields := map[string]any{"model": model}
	if tenantID := r.Header.Get("X-Tenant-ID"); tenantID != "" {
		fields["tenant_id"] = tenantID
	}
	if user, ok := raw["user"].(string); ok && user != "" {
		fields["user_id"] = user
	}
	sessionID := r.Header.Get("X-Session-ID")

	entry, _, err := h.scheduler.Route(r.Context(), fields, sessionID)
	if err != nil {
		h.writeRoutingError(w, model, err)
		return
	}

	executionID := uuid.NewString()
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = executionID
	}
	ec := pipeline.NewExecutionContext(executionID, requestID, sessionID, entry.CompositeID, entry.CompositeID)

	if stream {
		h.serveStream(w, r, ec, body, clientDialect, entry)
		return
	}
	h.serveUnary(w, r, ec, body, clientDialect, entry)
}

func (h *ChatHandler) serveUnary(w http.ResponseWriter, r *http.Request, ec *pipeline.ExecutionContext, body []byte, clientDialect protocol.Dialect, entry scheduler.PoolEntry) {
	out, err := h.executor.Execute(r.Context(), ec, body, clientDialect, protocol.DialectOpenAI, entry.ProviderID)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, ec *pipeline.ExecutionContext, body []byte, clientDialect protocol.Dialect, entry scheduler.PoolEntry) {
	chunks, err := h.executor.ExecuteStream(r.Context(), ec, body, clientDialect, protocol.DialectOpenAI, entry.ProviderID)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		if _, err := io.WriteString(w, "data: "+chunk.Data+"\n\n"); err != nil {
			h.logger.Warn("chat stream write failed", zap.Error(err), zap.String("pipeline_id", ec.PipelineID))
			return
		}
		if ok {
			flusher.Flush()
		}
	}
	if ok {
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// writeRoutingError maps a Scheduler.Route failure to the client-visible
// HTTP status mapping's "no available pipelines" (503).
func (h *ChatHandler) writeRoutingError(w http.ResponseWriter, model string, err error) {
	if errors.Is(err, scheduler.ErrNoAvailablePipelines) {
		apiErr := types.NewError(types.ErrRoutingUnavailable, "no available pipelines for model "+model).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithCause(err)
		WriteError(w, apiErr, h.logger)
		return
	}
	apiErr := types.NewError(types.ErrModelNotFound, "model not found: "+model).WithCause(err)
	WriteError(w, apiErr, h.logger)
}

// writePipelineError maps a *types.PipelineError from the executor to the
// client-visible HTTP status mapping.
func (h *ChatHandler) writePipelineError(w http.ResponseWriter, err error) {
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		code, status := mapPipelineErrorCode(pe.Code)
		apiErr := types.NewError(code, pe.Error()).WithHTTPStatus(status).WithCause(pe.Cause)
		WriteError(w, apiErr, h.logger)
		return
	}
	WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
}

func mapPipelineErrorCode(code string) (types.ErrorCode, int) {
	switch code {
	case "execution_timeout":
		return types.ErrTimeout, http.StatusGatewayTimeout
	case "execution_cancelled":
		return types.ErrInvalidRequest, 499
	case "provider_resolve":
		return types.ErrModelNotFound, http.StatusNotFound
	case "protocol_switch_in", "protocol_switch_out", "compat_mapper":
		return types.ErrUpstreamError, http.StatusBadGateway
	default:
		return types.ErrUpstreamError, http.StatusBadGateway
	}
}
