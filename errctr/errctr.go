// Package errctr implements the Error Center: classification-driven policy
// selection for PipelineErrors, plus the blacklist that couples instance
// health to the scheduler's pool (see the scheduler package for the pool
// side of the dedup invariant).
package errctr

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relayforge/relayforge/types"
	"go.uber.org/zap"
)

// ActionKind is the policy decision returned for a PipelineError.
type ActionKind string

const (
	ActionRetry              ActionKind = "retry"
	ActionFailover           ActionKind = "failover"
	ActionBlacklistTemporary ActionKind = "blacklist_temporary"
	ActionBlacklistPermanent ActionKind = "blacklist_permanent"
	ActionMaintenance        ActionKind = "maintenance"
	ActionIgnore             ActionKind = "ignore"
)

// Action is what the caller (Scheduler/Pipeline Executor) must honor.
type Action struct {
	Kind            ActionKind
	ShouldRetry     bool
	RetryDelay      time.Duration
	DestroyPipeline bool
}

// HandlerFunc lets a caller register a custom policy for a specific error code.
type HandlerFunc func(err *types.PipelineError, attempt int) Action

// BackoffPolicy controls retry delay computation, shared by network and
// rate_limiting category defaults. Grounded on llm/retry's exponential
// backoff + jitter shape.
type BackoffPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     bool
}

func (p BackoffPolicy) delay(attempt int) time.Duration {
	d := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter {
		j := d * 0.25
		d += (rand.Float64()*2 - 1) * j
	}
	if d < float64(p.Base) {
		d = float64(p.Base)
	}
	return time.Duration(d)
}

// Config configures the Center's defaults.
type Config struct {
	MaxRetries      int
	NetworkBackoff  BackoffPolicy
	RateLimitBackoff BackoffPolicy
	CleanupInterval time.Duration
}

// DefaultConfig returns the Center's default policy configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		NetworkBackoff: BackoffPolicy{
			Base: time.Second, Multiplier: 2.0, Max: 30 * time.Second, Jitter: true,
		},
		RateLimitBackoff: BackoffPolicy{
			Base: 5 * time.Second, Multiplier: 2.0, Max: 120 * time.Second, Jitter: true,
		},
		CleanupInterval: 60 * time.Second,
	}
}

// BlacklistEntry mirrors the data model's BlacklistEntry: at most one entry
// per pipelineId, active iff permanent or not yet expired.
type BlacklistEntry struct {
	PipelineID    string
	InstanceID    string
	Reason        *types.PipelineError
	BlacklistedAt time.Time
	ExpiresAt     time.Time // zero value means permanent
	Permanent     bool
}

// Active reports whether the entry currently excludes its pipeline.
func (e BlacklistEntry) Active(now time.Time) bool {
	return e.Permanent || now.Before(e.ExpiresAt)
}

// Stats is a snapshot of the Center's counters.
type Stats struct {
	TotalErrors       int64
	ByCategory        map[types.Category]int64
	BlacklistedCount  int
	LastCleanupAt     time.Time
}

// Center is the stateful Error Center: classification, policy selection,
// and blacklist lifecycle (including its TTL reaper).
type Center struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	strategy map[string]Action
	blacklist map[string]*BlacklistEntry // keyed by pipelineId

	statsMu sync.Mutex
	stats   Stats

	// onBlacklist/onUnblacklist let the scheduler keep the pool in sync
	// with the dedup invariant without this package importing scheduler.
	onBlacklist   func(pipelineID string)
	onUnblacklist func(pipelineID string)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an Error Center and starts its blacklist reaper.
func New(cfg Config, logger *zap.Logger, onBlacklist, onUnblacklist func(pipelineID string)) *Center {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 60 * time.Second
	}
	c := &Center{
		cfg:           cfg,
		logger:        logger,
		handlers:      make(map[string]HandlerFunc),
		strategy:      make(map[string]Action),
		blacklist:     make(map[string]*BlacklistEntry),
		onBlacklist:   onBlacklist,
		onUnblacklist: onUnblacklist,
		stopCh:        make(chan struct{}),
		stats:         Stats{ByCategory: make(map[types.Category]int64)},
	}
	c.wg.Add(1)
	go c.reapLoop()
	return c
}

// Stop terminates the blacklist reaper. Safe to call once.
func (c *Center) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// RegisterHandler installs a custom policy function for a specific error code.
func (c *Center) RegisterHandler(code string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[code] = fn
}

// RegisterStrategy installs a fixed Action for a specific error code,
// overriding the category default but yielding to a registered HandlerFunc.
func (c *Center) RegisterStrategy(code string, action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy[code] = action
}

// HandleError classifies err and returns the Action the caller must honor.
// attempt is the number of prior attempts already made for this request.
func (c *Center) HandleError(err *types.PipelineError, attempt int) Action {
	c.recordError(err)

	c.mu.RLock()
	handler, hasHandler := c.handlers[err.Code]
	fixed, hasStrategy := c.strategy[err.Code]
	c.mu.RUnlock()

	if hasHandler {
		return handler(err, attempt)
	}
	if hasStrategy {
		return fixed
	}
	return c.defaultAction(err, attempt)
}

func (c *Center) defaultAction(err *types.PipelineError, attempt int) Action {
	switch err.Category {
	case types.CategoryNetwork:
		if attempt >= c.cfg.MaxRetries {
			return Action{Kind: ActionFailover}
		}
		return Action{Kind: ActionRetry, ShouldRetry: true, RetryDelay: c.cfg.NetworkBackoff.delay(attempt)}
	case types.CategoryRateLimiting:
		if attempt >= c.cfg.MaxRetries {
			return Action{Kind: ActionFailover}
		}
		return Action{Kind: ActionRetry, ShouldRetry: true, RetryDelay: c.cfg.RateLimitBackoff.delay(attempt)}
	case types.CategoryAuthentication:
		return Action{Kind: ActionBlacklistTemporary, DestroyPipeline: true}
	case types.CategoryData:
		return Action{Kind: ActionIgnore}
	case types.CategoryResource:
		return Action{Kind: ActionFailover}
	case types.CategorySystem:
		return Action{Kind: ActionFailover}
	default:
		return Action{Kind: ActionIgnore}
	}
}

// HandleExecutionResult folds a successful execution back in: a success for
// a pipeline implicitly removes any blacklist entry for it (recovery signal).
func (c *Center) HandleExecutionResult(pipelineID string, success bool) {
	if success {
		c.Unblacklist(pipelineID)
	}
}

// Blacklist adds or replaces the entry for pipelineID. duration <= 0 with
// permanent=false is treated as an immediate no-op-free temporary block of
// zero length (the reaper removes it on its next pass).
func (c *Center) Blacklist(pipelineID, instanceID string, reason *types.PipelineError, duration time.Duration, permanent bool) {
	now := time.Now()
	entry := &BlacklistEntry{
		PipelineID:    pipelineID,
		InstanceID:    instanceID,
		Reason:        reason,
		BlacklistedAt: now,
		Permanent:     permanent,
	}
	if !permanent {
		entry.ExpiresAt = now.Add(duration)
	}

	c.mu.Lock()
	c.blacklist[pipelineID] = entry
	c.mu.Unlock()

	if c.onBlacklist != nil {
		c.onBlacklist(pipelineID)
	}
	c.logger.Warn("pipeline blacklisted",
		zap.String("pipeline_id", pipelineID),
		zap.String("instance_id", instanceID),
		zap.Bool("permanent", permanent),
		zap.Duration("duration", duration),
	)
}

// Unblacklist removes pipelineID's entry if present. Idempotent.
func (c *Center) Unblacklist(pipelineID string) {
	c.mu.Lock()
	_, existed := c.blacklist[pipelineID]
	delete(c.blacklist, pipelineID)
	c.mu.Unlock()

	if existed && c.onUnblacklist != nil {
		c.onUnblacklist(pipelineID)
	}
}

// IsBlacklisted reports whether pipelineID currently has an active entry.
func (c *Center) IsBlacklisted(pipelineID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.blacklist[pipelineID]
	if !ok {
		return false
	}
	return e.Active(time.Now())
}

// GetBlacklisted returns a snapshot of all currently active entries.
func (c *Center) GetBlacklisted() []BlacklistEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	out := make([]BlacklistEntry, 0, len(c.blacklist))
	for _, e := range c.blacklist {
		if e.Active(now) {
			out = append(out, *e)
		}
	}
	return out
}

// GetStats returns a snapshot of the Center's error counters.
func (c *Center) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.mu.RLock()
	blacklisted := 0
	now := time.Now()
	for _, e := range c.blacklist {
		if e.Active(now) {
			blacklisted++
		}
	}
	c.mu.RUnlock()

	byCategory := make(map[types.Category]int64, len(c.stats.ByCategory))
	for k, v := range c.stats.ByCategory {
		byCategory[k] = v
	}
	return Stats{
		TotalErrors:      c.stats.TotalErrors,
		ByCategory:       byCategory,
		BlacklistedCount: blacklisted,
		LastCleanupAt:    c.stats.LastCleanupAt,
	}
}

func (c *Center) recordError(err *types.PipelineError) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.TotalErrors++
	c.stats.ByCategory[err.Category]++

	level := zap.DebugLevel
	switch err.Severity {
	case types.SeverityMedium:
		level = zap.InfoLevel
	case types.SeverityHigh:
		level = zap.WarnLevel
	case types.SeverityCritical:
		level = zap.ErrorLevel
	}
	if ce := c.logger.Check(level, "pipeline error"); ce != nil {
		ce.Write(
			zap.String("code", err.Code),
			zap.String("category", string(err.Category)),
			zap.String("severity", string(err.Severity)),
			zap.String("pipeline_id", err.PipelineID),
			zap.String("instance_id", err.InstanceID),
		)
	}
}

// reapLoop removes expired, non-permanent blacklist entries every
// cfg.CleanupInterval, bounding the reaper's observable latency (§8 property 5).
func (c *Center) reapLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reap()
		}
	}
}

func (c *Center) reap() {
	now := time.Now()
	var expired []string

	c.mu.Lock()
	for id, e := range c.blacklist {
		if !e.Permanent && !now.Before(e.ExpiresAt) {
			expired = append(expired, id)
			delete(c.blacklist, id)
		}
	}
	c.stats.LastCleanupAt = now
	c.mu.Unlock()

	for _, id := range expired {
		if c.onUnblacklist != nil {
			c.onUnblacklist(id)
		}
		c.logger.Info("blacklist entry expired", zap.String("pipeline_id", id))
	}
}
