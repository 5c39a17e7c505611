package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Scheduler resolves a caller's virtual model name + request fields into a
// concrete PoolEntry, applying routing-rule evaluation and instance
// selection, and keeping the blacklist/pool invariant through Coordinator.
type Scheduler struct {
	logger *zap.Logger

	mu            sync.RWMutex
	rules         []RoutingRule
	virtualModels map[string]VirtualModel

	coord   *Coordinator
	cursors *cursors
}

// New creates a Scheduler over an existing Coordinator (shared with the
// Error Center's blacklist lifecycle).
func New(coord *Coordinator, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:        logger,
		virtualModels: make(map[string]VirtualModel),
		coord:         coord,
		cursors:       newCursors(),
	}
}

// LoadAssembly atomically replaces the rule set and virtual models, per §3's
// "replaced atomically on hot-reload" requirement for the VirtualModel set.
func (s *Scheduler) LoadAssembly(rules []RoutingRule, virtualModels []VirtualModel) {
	vmIndex := make(map[string]VirtualModel, len(virtualModels))
	for _, vm := range virtualModels {
		vmIndex[vm.ID] = vm
	}
	sorted := sortRules(rules)

	s.mu.Lock()
	s.rules = sorted
	s.virtualModels = vmIndex
	s.mu.Unlock()
}

// Route evaluates the rule set against fields (which must include at least
// "model": <virtual model name>) and returns the chosen PoolEntry.
// sessionID may be empty. When present on the call that first creates a
// rule's round-robin cursor, it seeds that cursor's starting offset; later
// calls do not consult it, so requests sharing a sessionID are not pinned
// to one instance.
func (s *Scheduler) Route(ctx context.Context, fields map[string]any, sessionID string) (PoolEntry, RoutingRule, error) {
	s.mu.RLock()
	rules := s.rules
	vms := s.virtualModels
	s.mu.RUnlock()

	rule, ok := firstMatch(rules, fields)
	if !ok {
		return PoolEntry{}, RoutingRule{}, ErrNoAvailablePipelines
	}

	vm, ok := vms[rule.VirtualModelID]
	if !ok {
		return PoolEntry{}, rule, ErrNoAvailablePipelines
	}

	candidates := s.buildCandidates(vm)
	entry, err := selectInstance(rule.Strategy, rule.ID, candidates, s.cursors, sessionSeed(sessionID))
	if err != nil {
		s.logger.Warn("no available pipelines", zap.String("rule_id", rule.ID), zap.String("virtual_model", vm.ID))
		return PoolEntry{}, rule, err
	}
	return entry, rule, nil
}

// buildCandidates resolves a VirtualModel's targets against the pool,
// dropping any target whose compositeId is currently blacklisted and
// renormalizing the survivors' weights implicitly (selectWeighted treats
// the remaining set as the whole population).
func (s *Scheduler) buildCandidates(vm VirtualModel) []candidate {
	pool := s.coord.PoolEntries()
	byProvider := make(map[string]PoolEntry, len(pool))
	for _, e := range pool {
		byProvider[e.ProviderID] = e
	}

	out := make([]candidate, 0, len(vm.Targets))
	for _, t := range vm.Targets {
		entry, ok := byProvider[t.ProviderID]
		if !ok {
			continue
		}
		if s.coord.IsInBlacklist(entry.CompositeID) {
			continue
		}
		out = append(out, candidate{entry: entry, weight: t.Weight})
	}
	return out
}

// Coordinator exposes the Scheduler's Dedup Coordinator, e.g. for the Error
// Center's onBlacklist/onUnblacklist callbacks and the admin pool endpoint.
func (s *Scheduler) Coordinator() *Coordinator {
	return s.coord
}
