// =============================================================================
// 📦 路由装配表 + 调度器策略配置
// =============================================================================
// AssemblyConfig 是 VirtualModel/RoutingRule/Provider 注册信息的纯数据镜像，
// 可直接 YAML 序列化；scheduler 包里的 RoutingRule.Custom 条件函数和
// insertionOrder 字段不可序列化，因此这里单独定义镜像类型，再用 ToScheduler*
// 转换为运行时类型。
// =============================================================================
package config

import (
	"fmt"

	"github.com/relayforge/relayforge/llm/factory"
	"github.com/relayforge/relayforge/scheduler"
)

// AssemblyConfig is the on-disk routing assembly: virtual models, routing
// rules and the provider registry backing them.
type AssemblyConfig struct {
	// VirtualModels 虚拟模型及其候选目标列表
	VirtualModels []VirtualModelConfig `yaml:"virtual_models" env:"VIRTUAL_MODELS"`
	// RoutingRules 路由规则，按 priority 降序、插入顺序次之求值
	RoutingRules []RoutingRuleConfig `yaml:"routing_rules" env:"ROUTING_RULES"`
	// Registry Provider 注册信息，直接喂给 factory.NewRegistryFromConfig
	Registry factory.RegistryConfig `yaml:"registry" env:"REGISTRY"`
}

// TargetConfig mirrors scheduler.Target.
type TargetConfig struct {
	ProviderID string  `yaml:"provider_id"`
	Weight     float64 `yaml:"weight"`
	Fallback   bool    `yaml:"fallback"`
}

// VirtualModelConfig mirrors scheduler.VirtualModel.
type VirtualModelConfig struct {
	ID      string         `yaml:"id"`
	Targets []TargetConfig `yaml:"targets"`
}

// ConditionConfig mirrors scheduler.Condition, minus the non-serializable
// Custom function: a custom operator is only usable when registered
// programmatically, not loaded from YAML.
type ConditionConfig struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// RoutingRuleConfig mirrors scheduler.RoutingRule.
type RoutingRuleConfig struct {
	ID              string            `yaml:"id"`
	Enabled         bool              `yaml:"enabled"`
	Priority        int               `yaml:"priority"`
	VirtualModelID  string            `yaml:"virtual_model_id"`
	LogicalOperator string            `yaml:"logical_operator"`
	Conditions      []ConditionConfig `yaml:"conditions"`
	Strategy        string            `yaml:"strategy"`
}

// ToSchedulerVirtualModels converts the on-disk virtual model list to the
// runtime scheduler.VirtualModel slice.
func (a AssemblyConfig) ToSchedulerVirtualModels() []scheduler.VirtualModel {
	out := make([]scheduler.VirtualModel, 0, len(a.VirtualModels))
	for _, vm := range a.VirtualModels {
		targets := make([]scheduler.Target, 0, len(vm.Targets))
		for _, t := range vm.Targets {
			targets = append(targets, scheduler.Target{ProviderID: t.ProviderID, Weight: t.Weight, Fallback: t.Fallback})
		}
		out = append(out, scheduler.VirtualModel{ID: vm.ID, Targets: targets})
	}
	return out
}

// ToSchedulerRoutingRules converts the on-disk routing rule list to the
// runtime scheduler.RoutingRule slice, preserving YAML declaration order as
// the insertion-order tiebreak the scheduler expects.
func (a AssemblyConfig) ToSchedulerRoutingRules() ([]scheduler.RoutingRule, error) {
	out := make([]scheduler.RoutingRule, 0, len(a.RoutingRules))
	for _, r := range a.RoutingRules {
		conds := make([]scheduler.Condition, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			op := scheduler.Operator(c.Operator)
			switch op {
			case scheduler.OpEquals, scheduler.OpNotEquals, scheduler.OpContains, scheduler.OpNotContains,
				scheduler.OpStartsWith, scheduler.OpEndsWith, scheduler.OpGT, scheduler.OpLT, scheduler.OpGTE,
				scheduler.OpLTE, scheduler.OpIn, scheduler.OpNotIn, scheduler.OpRegex:
			case scheduler.OpCustom:
				return nil, fmt.Errorf("routing rule %q: custom operator cannot be loaded from config", r.ID)
			default:
				return nil, fmt.Errorf("routing rule %q: unknown operator %q", r.ID, c.Operator)
			}
			conds = append(conds, scheduler.Condition{Field: c.Field, Operator: op, Value: c.Value})
		}
		out = append(out, scheduler.RoutingRule{
			ID:              r.ID,
			Enabled:         r.Enabled,
			Priority:        r.Priority,
			VirtualModelID:  r.VirtualModelID,
			LogicalOperator: scheduler.LogicalOperator(r.LogicalOperator),
			Conditions:      conds,
			Strategy:        scheduler.Strategy(r.Strategy),
		})
	}
	return out, nil
}

// SchedulerPolicyConfig is the on-disk SchedulerConfig document: basic,
// loadBalancing, healthCheck, errorHandling, performance, monitoring,
// security, per the external-interfaces configuration-files contract.
type SchedulerPolicyConfig struct {
	Basic         SchedulerBasicConfig         `yaml:"basic"`
	LoadBalancing SchedulerLoadBalancingConfig `yaml:"load_balancing"`
	HealthCheck   SchedulerHealthCheckConfig   `yaml:"health_check"`
	ErrorHandling SchedulerErrorHandlingConfig `yaml:"error_handling"`
	Performance   SchedulerPerformanceConfig   `yaml:"performance"`
	Monitoring    SchedulerMonitoringConfig    `yaml:"monitoring"`
	Security      SchedulerSecurityConfig      `yaml:"security"`
}

// SchedulerBasicConfig carries the fallback strategy used when no routing
// rule matches a request.
type SchedulerBasicConfig struct {
	FallbackStrategy string `yaml:"fallback_strategy"`
}

// SchedulerLoadBalancingConfig bounds the load-balancing strategy to the
// closed set the Config Validator enforces.
type SchedulerLoadBalancingConfig struct {
	Strategy string `yaml:"strategy"`
}

// SchedulerHealthCheckConfig controls periodic pool-health probing.
type SchedulerHealthCheckConfig struct {
	Enabled            bool    `yaml:"enabled"`
	IntervalMs         int     `yaml:"interval_ms"`
	UnhealthyThreshold int     `yaml:"unhealthy_threshold"`
	HealthyThreshold   int     `yaml:"healthy_threshold"`
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`
}

// SchedulerErrorHandlingConfig governs the Error Center's blacklist policy.
type SchedulerErrorHandlingConfig struct {
	MaxBlacklistEntries int `yaml:"max_blacklist_entries"`
	BlacklistTTLMs      int `yaml:"blacklist_ttl_ms"`
	MaxRetries          int `yaml:"max_retries"`
}

// SchedulerPerformanceConfig bounds executor-level timeouts and concurrency.
type SchedulerPerformanceConfig struct {
	ExecutionTimeoutMs int `yaml:"execution_timeout_ms"`
	StageTimeoutMs     int `yaml:"stage_timeout_ms"`
	MaxConcurrency     int `yaml:"max_concurrency"`
}

// SchedulerMonitoringConfig gates the Prometheus/OTel exporters for
// scheduler-level signals (blacklist size, pool size, circuit state).
type SchedulerMonitoringConfig struct {
	Enabled  bool   `yaml:"enabled"`
	LogLevel string `yaml:"log_level"`
}

// SchedulerSecurityConfig reserves the security-relevant scheduler knobs
// (e.g. which fields a custom condition may read from a request).
type SchedulerSecurityConfig struct {
	AllowedConditionFields []string `yaml:"allowed_condition_fields"`
}
