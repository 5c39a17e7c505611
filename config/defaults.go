// =============================================================================
// 📦 RelayForge 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/relayforge/relayforge/llm/factory"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Defaults:  DefaultRequestDefaultsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Assembly:  DefaultAssemblyConfig(),
		Scheduler: DefaultSchedulerPolicyConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		GRPCPort:        9090,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRequestDefaultsConfig 返回默认请求参数配置
func DefaultRequestDefaultsConfig() RequestDefaultsConfig {
	return RequestDefaultsConfig{
		Model:         "gpt-4",
		Temperature:   0.7,
		MaxTokens:     4096,
		Timeout:       2 * time.Minute,
		StreamEnabled: true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "relayforge",
		Password:        "",
		Name:            "relayforge",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultAssemblyConfig 返回默认路由装配表：空的虚拟模型/路由规则集合，
// 等待 YAML 或热加载填充。
func DefaultAssemblyConfig() AssemblyConfig {
	return AssemblyConfig{
		VirtualModels: []VirtualModelConfig{},
		RoutingRules:  []RoutingRuleConfig{},
		Registry: factory.RegistryConfig{
			Providers: map[string]factory.ProviderConfig{},
		},
	}
}

// DefaultSchedulerPolicyConfig 返回默认调度器策略配置
func DefaultSchedulerPolicyConfig() SchedulerPolicyConfig {
	return SchedulerPolicyConfig{
		Basic: SchedulerBasicConfig{
			FallbackStrategy: "round_robin",
		},
		LoadBalancing: SchedulerLoadBalancingConfig{
			Strategy: "weighted",
		},
		HealthCheck: SchedulerHealthCheckConfig{
			Enabled:            true,
			IntervalMs:         30_000,
			UnhealthyThreshold: 3,
			HealthyThreshold:   2,
			ErrorRateThreshold: 0.5,
		},
		ErrorHandling: SchedulerErrorHandlingConfig{
			MaxBlacklistEntries: 100,
			BlacklistTTLMs:      5 * 60 * 1000,
			MaxRetries:          3,
		},
		Performance: SchedulerPerformanceConfig{
			ExecutionTimeoutMs: 120_000,
			StageTimeoutMs:     30_000,
			MaxConcurrency:     20,
		},
		Monitoring: SchedulerMonitoringConfig{
			Enabled:  true,
			LogLevel: "info",
		},
		Security: SchedulerSecurityConfig{
			AllowedConditionFields: []string{"model", "tenant_id", "user_id", "tags"},
		},
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "openai",
		APIKey:          "",
		BaseURL:         "",
		Timeout:         2 * time.Minute,
		MaxRetries:      3,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "relayforge",
		Environment:  "development",
		SampleRate:   0.1,
	}
}
