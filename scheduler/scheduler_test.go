package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T) (*Scheduler, *Coordinator) {
	t.Helper()
	coord := NewCoordinator()
	return New(coord, zap.NewNop()), coord
}

func TestRoute_HappyPath(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "openai.qwen3-coder-plus", ProviderID: "openai"})

	s.LoadAssembly(
		[]RoutingRule{{
			ID: "r1", Enabled: true, Priority: 100, VirtualModelID: "claude-router",
			Conditions: []Condition{{Field: "model", Operator: OpEquals, Value: "claude-router"}},
			Strategy:   StrategyFixed,
		}},
		[]VirtualModel{{ID: "claude-router", Targets: []Target{{ProviderID: "openai", Weight: 100}}}},
	)

	entry, rule, err := s.Route(context.Background(), map[string]any{"model": "claude-router"}, "")
	require.NoError(t, err)
	assert.Equal(t, "r1", rule.ID)
	assert.Equal(t, "openai.qwen3-coder-plus", entry.CompositeID)
}

func TestRoute_NoMatchingRuleFails(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.LoadAssembly(
		[]RoutingRule{{ID: "r1", Enabled: true, Priority: 1, VirtualModelID: "vm1",
			Conditions: []Condition{{Field: "model", Operator: OpEquals, Value: "vm1"}}}},
		[]VirtualModel{{ID: "vm1"}},
	)

	_, _, err := s.Route(context.Background(), map[string]any{"model": "other"}, "")
	assert.ErrorIs(t, err, ErrNoAvailablePipelines)
}

func TestRoute_EmptyCandidatesAfterBlacklistFiltering(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})
	coord.AddToBlacklist("openai.gpt-4")

	s.LoadAssembly(
		[]RoutingRule{{ID: "r1", Enabled: true, Priority: 1, VirtualModelID: "vm1", Strategy: StrategyFixed}},
		[]VirtualModel{{ID: "vm1", Targets: []Target{{ProviderID: "openai", Weight: 100}}}},
	)

	_, _, err := s.Route(context.Background(), map[string]any{}, "")
	assert.ErrorIs(t, err, ErrNoAvailablePipelines)
}

func TestRoute_DisabledRuleNeverMatches(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "openai.gpt-4", ProviderID: "openai"})

	s.LoadAssembly(
		[]RoutingRule{{ID: "r1", Enabled: false, Priority: 100, VirtualModelID: "vm1", Strategy: StrategyFixed}},
		[]VirtualModel{{ID: "vm1", Targets: []Target{{ProviderID: "openai"}}}},
	)

	_, _, err := s.Route(context.Background(), map[string]any{}, "")
	assert.ErrorIs(t, err, ErrNoAvailablePipelines)
}

func TestRoute_PriorityOrderingPicksHighestFirst(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "low.x", ProviderID: "low"})
	coord.AddToPool(&PoolEntry{CompositeID: "high.x", ProviderID: "high"})

	s.LoadAssembly(
		[]RoutingRule{
			{ID: "low-priority", Enabled: true, Priority: 1, VirtualModelID: "vm-low", Strategy: StrategyFixed},
			{ID: "high-priority", Enabled: true, Priority: 100, VirtualModelID: "vm-high", Strategy: StrategyFixed},
		},
		[]VirtualModel{
			{ID: "vm-low", Targets: []Target{{ProviderID: "low"}}},
			{ID: "vm-high", Targets: []Target{{ProviderID: "high"}}},
		},
	)

	_, rule, err := s.Route(context.Background(), map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, "high-priority", rule.ID)
}

func TestRoute_RoundRobinCyclesCandidates(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "a.m", ProviderID: "a"})
	coord.AddToPool(&PoolEntry{CompositeID: "b.m", ProviderID: "b"})

	s.LoadAssembly(
		[]RoutingRule{{ID: "r1", Enabled: true, Priority: 1, VirtualModelID: "vm1", Strategy: StrategyRoundRobin}},
		[]VirtualModel{{ID: "vm1", Targets: []Target{{ProviderID: "a"}, {ProviderID: "b"}}}},
	)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		entry, _, err := s.Route(context.Background(), map[string]any{}, "")
		require.NoError(t, err)
		seen[entry.ProviderID]++
	}
	assert.Equal(t, 2, seen["a"])
	assert.Equal(t, 2, seen["b"])
}

func TestRoute_LeastConnectionsPicksLowest(t *testing.T) {
	s, coord := newTestScheduler(t)
	coord.AddToPool(&PoolEntry{CompositeID: "a.m", ProviderID: "a", Connections: 5})
	coord.AddToPool(&PoolEntry{CompositeID: "b.m", ProviderID: "b", Connections: 1})

	s.LoadAssembly(
		[]RoutingRule{{ID: "r1", Enabled: true, Priority: 1, VirtualModelID: "vm1", Strategy: StrategyLeastConnections}},
		[]VirtualModel{{ID: "vm1", Targets: []Target{{ProviderID: "a"}, {ProviderID: "b"}}}},
	)

	entry, _, err := s.Route(context.Background(), map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, "b", entry.ProviderID)
}
