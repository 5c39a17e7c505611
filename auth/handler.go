package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relayforge/relayforge/credentials"
)

// ErrUnrecoverable is returned when a CredentialHandle cannot be repaired by
// refresh or reauthentication and the caller must surface the failure upward
// (§4.2 Refresh: 400/invalid_grant wipes the handle and fails this way).
var ErrUnrecoverable = errors.New("auth: credential unrecoverable")

// State is a CredentialHandle's position in the recovery state machine.
type State string

const (
	StateFresh      State = "fresh"
	StateRefreshing State = "refreshing"
	StateReauthing  State = "reauthing"
	StateFailed     State = "failed"
)

// Action names what the Auth Handler did to repair a CredentialHandle.
type Action string

const (
	ActionNone    Action = "none"
	ActionRefresh Action = "refresh"
	ActionReauth  Action = "reauth"
)

// HealthStatus is EnhancedHealthCheck's coarse verdict.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusWarning   HealthStatus = "warning"
	StatusUnhealthy HealthStatus = "unhealthy"
)

const (
	defaultMaxRefreshAttempts = 3
	defaultReauthTimeout      = 300 * time.Second
)

// Refresher exchanges a handle's refresh token for a new access token.
type Refresher func(ctx context.Context, h *credentials.Handle) (*credentials.Handle, error)

// Reauthenticator runs a full re-enrollment (typically DeviceFlow) from scratch.
type Reauthenticator func(ctx context.Context) (*credentials.Handle, error)

type credState struct {
	mu       sync.Mutex
	state    State
	attempts int
}

// Handler implements the Auth Handler (§4.2): it drives a CredentialHandle
// through Fresh/Refreshing/Reauthing/Failed in response to expiry or a 401,
// serializing recovery per handle so peer callers observe one outcome.
type Handler struct {
	logger             *zap.Logger
	maxRefreshAttempts int
	reauthTimeout      time.Duration

	mu     sync.Mutex
	states map[string]*credState
}

// NewHandler builds a Handler with the spec's defaults (max 3 refresh
// attempts, 300s reauth deadline). Pass opts to override either.
func NewHandler(logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		logger:             logger,
		maxRefreshAttempts: defaultMaxRefreshAttempts,
		reauthTimeout:      defaultReauthTimeout,
		states:             make(map[string]*credState),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption customizes a Handler at construction.
type HandlerOption func(*Handler)

func WithMaxRefreshAttempts(n int) HandlerOption {
	return func(h *Handler) { h.maxRefreshAttempts = n }
}

func WithReauthTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.reauthTimeout = d }
}

func (h *Handler) stateFor(id string) *credState {
	h.mu.Lock()
	defer h.mu.Unlock()
	cs, ok := h.states[id]
	if !ok {
		cs = &credState{state: StateFresh}
		h.states[id] = cs
	}
	return cs
}

// EnsureValid returns h unchanged if it is already valid, otherwise drives it
// through refresh (and, if autoReauth is set, reauthentication) before
// returning the repaired handle.
func (h *Handler) EnsureValid(ctx context.Context, id string, cred *credentials.Handle, refresher Refresher, reauthenticator Reauthenticator, autoReauth bool) (*credentials.Handle, Action, error) {
	if cred.IsValid(time.Now(), credentials.DefaultSafetyMargin) {
		return cred, ActionNone, nil
	}
	return h.recover(ctx, id, cred, refresher, reauthenticator, autoReauth)
}

// HandleError is called on a reactive 401: it runs the same recovery path as
// EnsureValid regardless of why the caller believes cred is stale.
func (h *Handler) HandleError(ctx context.Context, id string, cred *credentials.Handle, cause error, refresher Refresher, reauthenticator Reauthenticator, autoReauth bool) (*credentials.Handle, Action, error) {
	h.logger.Warn("credential recovery triggered by request error",
		zap.String("credential_id", id), zap.Error(cause))
	return h.recover(ctx, id, cred, refresher, reauthenticator, autoReauth)
}

func (h *Handler) recover(ctx context.Context, id string, cred *credentials.Handle, refresher Refresher, reauthenticator Reauthenticator, autoReauth bool) (*credentials.Handle, Action, error) {
	cs := h.stateFor(id)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.state = StateRefreshing
	cs.attempts++

	if cs.attempts <= h.maxRefreshAttempts && refresher != nil {
		next, err := refresher(ctx, cred)
		if err == nil {
			cs.state = StateFresh
			cs.attempts = 0
			return next, ActionRefresh, nil
		}
		if !errors.Is(err, ErrUnrecoverable) && cs.attempts < h.maxRefreshAttempts {
			h.logger.Debug("refresh failed, will retry on next recovery call",
				zap.String("credential_id", id), zap.Int("attempts", cs.attempts), zap.Error(err))
			return cred, ActionRefresh, err
		}
		h.logger.Info("refresh exhausted, falling back to reauthentication",
			zap.String("credential_id", id), zap.Int("attempts", cs.attempts), zap.Error(err))
	}

	if !autoReauth || reauthenticator == nil {
		cs.state = StateFailed
		return cred, ActionRefresh, ErrUnrecoverable
	}

	cs.state = StateReauthing
	rctx, cancel := context.WithTimeout(ctx, h.reauthTimeout)
	defer cancel()

	next, err := reauthenticator(rctx)
	if err != nil {
		cs.state = StateFailed
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return cred, ActionReauth, ErrDeviceAuthorizationTimeout
		}
		return cred, ActionReauth, fmt.Errorf("reauthenticate: %w", err)
	}

	cs.state = StateFresh
	cs.attempts = 0
	return next, ActionReauth, nil
}

// EnhancedHealthCheck reports a CredentialHandle's fitness without mutating
// it: healthy tokens may still be probed live, tokens inside the safety
// margin are a warning, and hard-expired or empty handles are unhealthy.
//
// expiredFn, when non-nil, overrides the default expiry check — useful for
// API-key credentials whose validity can only be established by probe.
func (h *Handler) EnhancedHealthCheck(ctx context.Context, cred *credentials.Handle, expiredFn func(*credentials.Handle) bool, probe func(ctx context.Context, cred *credentials.Handle) error) (status HealthStatus, needsReauth bool, tokenStatus string) {
	if cred.Empty() {
		return StatusUnhealthy, true, "missing"
	}

	now := time.Now()
	expired := !cred.IsValid(now, 0)
	if expiredFn != nil {
		expired = expiredFn(cred)
	}
	if expired {
		return StatusUnhealthy, true, "expired"
	}

	if !cred.IsValid(now, credentials.DefaultSafetyMargin) {
		return StatusWarning, true, "expiring_soon"
	}

	if probe != nil {
		if err := probe(ctx, cred); err != nil {
			h.logger.Warn("credential probe failed", zap.Error(err))
			return StatusWarning, false, "probe_failed"
		}
	}
	return StatusHealthy, false, "valid"
}
