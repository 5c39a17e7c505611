package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinator_DisjointnessInvariant(t *testing.T) {
	c := NewCoordinator()
	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})

	inBlacklist, inPool := c.CheckDuplicates("openai.gpt-4")
	assert.False(t, inBlacklist)
	assert.True(t, inPool)

	c.AddToBlacklist("openai.gpt-4")
	inBlacklist, inPool = c.CheckDuplicates("openai.gpt-4")
	assert.True(t, inBlacklist)
	assert.False(t, inPool)
}

func TestCoordinator_AddToPoolClearsBlacklistAndReactivates(t *testing.T) {
	c := NewCoordinator()
	c.AddToBlacklist("openai.gpt-4")

	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})

	inBlacklist, inPool := c.CheckDuplicates("openai.gpt-4")
	assert.False(t, inBlacklist)
	assert.True(t, inPool)

	entries := c.PoolEntries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "active", entries[0].Status)
}

func TestCoordinator_AddToPoolIdempotent(t *testing.T) {
	c := NewCoordinator()
	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})
	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})

	assert.Len(t, c.PoolEntries(), 1)
}

func TestCoordinator_AuditResolvesInFavorOfBlacklist(t *testing.T) {
	c := NewCoordinator()
	// Simulate a torn write landing both sides out of band.
	c.mu.Lock()
	c.pool["x"] = &PoolEntry{CompositeID: "x"}
	c.blacklist["x"] = struct{}{}
	c.mu.Unlock()

	result := c.Audit()
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Resolved)
	assert.False(t, c.IsInPool("x"))
	assert.True(t, c.IsInBlacklist("x"))

	again := c.Audit()
	assert.Equal(t, 0, again.Found)
}

type recordedTransition struct {
	compositeID, from, to string
}

type fakeRecorder struct{ got []recordedTransition }

func (f *fakeRecorder) RecordInstancePoolTransition(compositeID, from, to string) {
	f.got = append(f.got, recordedTransition{compositeID, from, to})
}

func TestCoordinator_SetRecorder_ReportsTransitions(t *testing.T) {
	c := NewCoordinator()
	rec := &fakeRecorder{}
	c.SetRecorder(rec)

	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})
	c.AddToBlacklist("openai.gpt-4")
	c.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})

	assert.Equal(t, []recordedTransition{
		{"openai.gpt-4", "blacklist", "pool"},
		{"openai.gpt-4", "pool", "blacklist"},
		{"openai.gpt-4", "blacklist", "pool"},
	}, rec.got)
}

func TestCoordinator_NilRecorder_DoesNotPanic(t *testing.T) {
	c := NewCoordinator()
	assert.NotPanics(t, func() {
		c.AddToPool(&PoolEntry{CompositeID: "x", ProviderID: "p"})
		c.AddToBlacklist("x")
	})
}

func TestCoordinator_UnblacklistThenAddToPool(t *testing.T) {
	c := NewCoordinator()
	c.AddToBlacklist("qwen.qwen3")
	c.RemoveFromBlacklist("qwen.qwen3")
	c.AddToPool(&PoolEntry{CompositeID: "qwen.qwen3", ProviderID: "qwen"})

	assert.True(t, c.IsInPool("qwen.qwen3"))
	assert.False(t, c.IsInBlacklist("qwen.qwen3"))
}
