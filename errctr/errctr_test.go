package errctr

import (
	"testing"
	"time"

	"github.com/relayforge/relayforge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCenter(t *testing.T, onBlacklist, onUnblacklist func(string)) *Center {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CleanupInterval = 20 * time.Millisecond
	c := New(cfg, zap.NewNop(), onBlacklist, onUnblacklist)
	t.Cleanup(c.Stop)
	return c
}

func networkErr(pipelineID string) *types.PipelineError {
	return types.NewPipelineError("connection_failed", types.CategoryNetwork,
		types.SeverityMedium, types.RecoverabilityRecoverable, types.ImpactPipeline, "test").
		WithPipeline(pipelineID, "inst-1")
}

func authErr(pipelineID string) *types.PipelineError {
	return types.NewPipelineError("token_expired", types.CategoryAuthentication,
		types.SeverityHigh, types.RecoverabilityAuth, types.ImpactPipeline, "test").
		WithPipeline(pipelineID, "inst-1")
}

func TestHandleError_NetworkRetriesThenFailsOver(t *testing.T) {
	c := newTestCenter(t, nil, nil)

	a0 := c.HandleError(networkErr("p1"), 0)
	assert.Equal(t, ActionRetry, a0.Kind)
	assert.True(t, a0.ShouldRetry)
	assert.Greater(t, a0.RetryDelay, time.Duration(0))

	a3 := c.HandleError(networkErr("p1"), 3)
	assert.Equal(t, ActionFailover, a3.Kind)
}

func TestHandleError_AuthenticationBlacklistsAndDestroysPipeline(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	a := c.HandleError(authErr("p1"), 0)
	assert.Equal(t, ActionBlacklistTemporary, a.Kind)
	assert.True(t, a.DestroyPipeline)
}

func TestRegisterHandler_OverridesDefault(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.RegisterHandler("connection_failed", func(err *types.PipelineError, attempt int) Action {
		return Action{Kind: ActionIgnore}
	})
	a := c.HandleError(networkErr("p1"), 0)
	assert.Equal(t, ActionIgnore, a.Kind)
}

func TestRegisterStrategy_OverridesDefault(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.RegisterStrategy("connection_failed", Action{Kind: ActionMaintenance})
	a := c.HandleError(networkErr("p1"), 0)
	assert.Equal(t, ActionMaintenance, a.Kind)
}

func TestBlacklist_ActiveWithinTTL(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.Blacklist("p1", "inst-1", authErr("p1"), 50*time.Millisecond, false)
	assert.True(t, c.IsBlacklisted("p1"))
}

func TestBlacklist_ReaperExpiresEntry(t *testing.T) {
	var unblacklisted []string
	c := newTestCenter(t, nil, func(id string) { unblacklisted = append(unblacklisted, id) })

	c.Blacklist("p1", "inst-1", authErr("p1"), 10*time.Millisecond, false)
	require.True(t, c.IsBlacklisted("p1"))

	require.Eventually(t, func() bool {
		return !c.IsBlacklisted("p1")
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(unblacklisted) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "p1", unblacklisted[0])
}

func TestBlacklist_PermanentNeverExpires(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.Blacklist("p1", "inst-1", authErr("p1"), 0, true)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, c.IsBlacklisted("p1"))
}

func TestUnblacklist_IdempotentAndNotifies(t *testing.T) {
	calls := 0
	c := newTestCenter(t, nil, func(string) { calls++ })
	c.Blacklist("p1", "inst-1", authErr("p1"), time.Minute, false)

	c.Unblacklist("p1")
	c.Unblacklist("p1")

	assert.False(t, c.IsBlacklisted("p1"))
	assert.Equal(t, 1, calls)
}

func TestHandleExecutionResult_SuccessClearsBlacklist(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.Blacklist("p1", "inst-1", authErr("p1"), time.Minute, false)
	require.True(t, c.IsBlacklisted("p1"))

	c.HandleExecutionResult("p1", true)
	assert.False(t, c.IsBlacklisted("p1"))
}

func TestBlacklist_NotifiesOnAdd(t *testing.T) {
	var added []string
	c := newTestCenter(t, func(id string) { added = append(added, id) }, nil)
	c.Blacklist("p1", "inst-1", authErr("p1"), time.Minute, false)
	assert.Equal(t, []string{"p1"}, added)
}

func TestGetStats_CountsByCategory(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.HandleError(networkErr("p1"), 0)
	c.HandleError(networkErr("p1"), 0)
	c.HandleError(authErr("p2"), 0)

	stats := c.GetStats()
	assert.EqualValues(t, 3, stats.TotalErrors)
	assert.EqualValues(t, 2, stats.ByCategory[types.CategoryNetwork])
	assert.EqualValues(t, 1, stats.ByCategory[types.CategoryAuthentication])
}

func TestGetBlacklisted_OnlyReturnsActiveEntries(t *testing.T) {
	c := newTestCenter(t, nil, nil)
	c.Blacklist("p1", "inst-1", authErr("p1"), time.Minute, false)
	c.Blacklist("p2", "inst-2", authErr("p2"), time.Minute, true)

	entries := c.GetBlacklisted()
	assert.Len(t, entries, 2)
}
