package scheduler

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// candidate is a renormalized selection candidate: a pool entry still
// eligible after blacklist filtering, carrying its target's configured weight.
type candidate struct {
	entry  PoolEntry
	weight float64
}

// ErrNoAvailablePipelines is returned when the candidate set is empty after
// blacklist filtering; callers map this to HTTP 503.
var ErrNoAvailablePipelines = fmt.Errorf("no_available_pipelines")

// cursors holds the per-rule round-robin state.
type cursors struct {
	byRule map[string]*atomic.Uint64
}

func newCursors() *cursors {
	return &cursors{byRule: make(map[string]*atomic.Uint64)}
}

func (c *cursors) next(ruleID string, n int, startOffset uint64) int {
	if n == 0 {
		return 0
	}
	ctr, ok := c.byRule[ruleID]
	if !ok {
		ctr = &atomic.Uint64{}
		ctr.Store(startOffset)
		c.byRule[ruleID] = ctr
	}
	v := ctr.Add(1)
	return int(v % uint64(n))
}

// selectInstance chooses one candidate per strategy. sessionHash is the
// hashed sessionId (0 when absent); round-robin uses it only as the
// starting offset of a rule's cursor when that cursor is first created.
func selectInstance(strategy Strategy, ruleID string, candidates []candidate, cur *cursors, sessionHash uint64) (PoolEntry, error) {
	if len(candidates) == 0 {
		return PoolEntry{}, ErrNoAvailablePipelines
	}

	switch strategy {
	case StrategyFixed:
		return candidates[0].entry, nil

	case StrategyWeighted:
		return selectWeighted(candidates), nil

	case StrategyRoundRobin:
		idx := cur.next(ruleID, len(candidates), sessionHash)
		return candidates[idx].entry, nil

	case StrategyLeastConnections:
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.entry.Connections < best.entry.Connections {
				best = c
			}
		}
		return best.entry, nil

	case StrategyRandom:
		return candidates[rand.IntN(len(candidates))].entry, nil

	default:
		// custom and unknown strategies have no resolver; fall back to
		// fixed so a request never hard-fails on an unknown tag.
		return candidates[0].entry, nil
	}
}

// selectWeighted performs cumulative-weight selection over the renormalized
// candidate set. Candidates with non-positive weight are treated as weight 1
// so a misconfigured weight never silently excludes an otherwise-healthy
// instance.
func selectWeighted(candidates []candidate) PoolEntry {
	total := 0.0
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		w := c.weight
		if w <= 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	r := rand.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r <= cum {
			return candidates[i].entry
		}
	}
	return candidates[len(candidates)-1].entry
}

// sessionSeed hashes a sessionId into a round-robin starting offset.
func sessionSeed(sessionID string) uint64 {
	if sessionID == "" {
		return 0
	}
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for i := 0; i < len(sessionID); i++ {
		h ^= uint64(sessionID[i])
		h *= 1099511628211
	}
	return h
}
