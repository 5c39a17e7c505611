// Package scheduler routes a virtual model to a concrete provider instance
// and keeps the blacklist and pool disjoint through its Dedup Coordinator.
package scheduler

import "time"

// Target is one candidate in a VirtualModel's ordered target list.
type Target struct {
	ProviderID string
	Weight     float64
	Fallback   bool
}

// VirtualModel is the caller-facing name resolved to a concrete (provider, model).
type VirtualModel struct {
	ID      string
	Targets []Target
}

// Operator is a routing-rule condition operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGT          Operator = "gt"
	OpLT          Operator = "lt"
	OpGTE         Operator = "gte"
	OpLTE         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpRegex       Operator = "regex"
	OpCustom      Operator = "custom"
)

// LogicalOperator combines a rule's conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// Condition is one predicate evaluated against a request's fields.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
	Custom   func(fieldValue any) bool
}

// Strategy is an instance-selection strategy within a matched rule.
type Strategy string

const (
	StrategyFixed            Strategy = "fixed"
	StrategyWeighted         Strategy = "weighted"
	StrategyRoundRobin       Strategy = "round_robin"
	StrategyLeastConnections Strategy = "least_connections"
	StrategyRandom           Strategy = "random"
	StrategyCustom           Strategy = "custom"
)

// RoutingRule matches a request to a VirtualModel's pipeline via its conditions.
type RoutingRule struct {
	ID              string
	Enabled         bool
	Priority        int
	VirtualModelID  string
	LogicalOperator LogicalOperator
	Conditions      []Condition
	Strategy        Strategy
	insertionOrder  int
}

// PoolEntry is an admitted (provider, model) pair eligible for routing.
type PoolEntry struct {
	CompositeID string
	ProviderID  string
	ModelID     string
	Endpoint    string
	Status      string
	AddedAt     time.Time
	Connections int64 // in-flight count, for least_connections
}
