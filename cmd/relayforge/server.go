// Package main provides the RelayForge server implementation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/relayforge/relayforge/api/handlers"
	"github.com/relayforge/relayforge/compat"
	"github.com/relayforge/relayforge/config"
	"github.com/relayforge/relayforge/errctr"
	"github.com/relayforge/relayforge/internal/history"
	"github.com/relayforge/relayforge/internal/metrics"
	"github.com/relayforge/relayforge/internal/server"
	"github.com/relayforge/relayforge/internal/telemetry"
	"github.com/relayforge/relayforge/llm/factory"
	"github.com/relayforge/relayforge/llm/tokenizer"
	"github.com/relayforge/relayforge/pipeline"
	"github.com/relayforge/relayforge/protocol"
	"github.com/relayforge/relayforge/scheduler"
	"github.com/relayforge/relayforge/streaming"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🖥️ Server 结构（重构版）
// =============================================================================

// Server is relayforge's main process: HTTP front door, metrics server,
// config hot reload, and (when a database is configured) blacklist/
// counter history persistence.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers
	db         *gorm.DB

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	chatHandler   *handlers.ChatHandler

	// 路由装配：Provider 注册表、调度器、去重协调器、错误中心、流水线执行器
	coordinator *scheduler.Coordinator
	errCenter   *errctr.Center

	// 指标收集器
	metricsCollector *metrics.Collector

	// 热更新管理器
	hotReloadManager *config.HotReloadManager
	configAPIHandler *config.ConfigAPIHandler

	wg sync.WaitGroup
}

// NewServer creates a new Server. otel and db may be nil (telemetry
// disabled, or no database configured — history persistence is then
// skipped and readiness/metrics still work).
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otel,
		db:         db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("relayforge", s.logger)

	// 注册精确的 tiktoken 计数器，覆盖 OpenAI 系列模型的默认字符估算
	tokenizer.RegisterOpenAITokenizers()

	// 2. 初始化 Handlers
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// 3. 初始化热更新管理器
	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if s.db != nil {
		s.healthHandler.RegisterCheck(handlers.NewPoolHealthCheck("history_db", func(ctx context.Context) error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}))
	}

	if err := s.initRoutingAssembly(); err != nil {
		return fmt.Errorf("failed to init routing assembly: %w", err)
	}

	s.logger.Info("Handlers initialized")
	return nil
}

// initRoutingAssembly builds the Provider Registry, Dedup Coordinator,
// Scheduler, Error Center and Pipeline Executor out of cfg.Assembly/
// cfg.Scheduler, loads the assembled virtual models/routing rules, seeds
// the pool with one PoolEntry per registered provider, and wires the
// resulting ChatHandler.
func (s *Server) initRoutingAssembly() error {
	registry, err := factory.NewRegistryFromConfig(s.cfg.Assembly.Registry, s.logger)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}

	s.coordinator = scheduler.NewCoordinator()
	s.coordinator.SetRecorder(s.metricsCollector)
	for providerID := range s.cfg.Assembly.Registry.Providers {
		s.coordinator.AddToPool(&scheduler.PoolEntry{
			CompositeID: providerID,
			ProviderID:  providerID,
			Status:      "active",
			AddedAt:     time.Now(),
		})
	}

	sched := scheduler.New(s.coordinator, s.logger)
	virtualModels := s.cfg.Assembly.ToSchedulerVirtualModels()
	routingRules, err := s.cfg.Assembly.ToSchedulerRoutingRules()
	if err != nil {
		return fmt.Errorf("convert routing rules: %w", err)
	}
	sched.LoadAssembly(routingRules, virtualModels)

	errCfg := errctr.DefaultConfig()
	errCfg.MaxRetries = s.cfg.Scheduler.ErrorHandling.MaxRetries
	s.errCenter = errctr.New(errCfg, s.logger,
		func(pipelineID string) {
			s.coordinator.AddToBlacklist(pipelineID)
			if s.db != nil {
				if err := history.RecordBlacklist(s.db, pipelineID, "blacklist", "error_center_threshold"); err != nil {
					s.logger.Warn("failed to record blacklist event", zap.Error(err))
				}
			}
		},
		func(pipelineID string) {
			s.coordinator.RemoveFromBlacklist(pipelineID)
			if s.db != nil {
				if err := history.RecordBlacklist(s.db, pipelineID, "unblacklist", "ttl_expired"); err != nil {
					s.logger.Warn("failed to record unblacklist event", zap.Error(err))
				}
			}
		},
	)

	executor := pipeline.New(
		protocol.NewSwitch(),
		compat.NewMapper(compat.NewValidator()),
		streaming.New(streaming.DefaultConfig()),
		pipeline.RegistryResolver{Registry: registry},
		pipeline.Config{
			ExecutionTimeout: time.Duration(s.cfg.Scheduler.Performance.ExecutionTimeoutMs) * time.Millisecond,
			StageTimeout:     time.Duration(s.cfg.Scheduler.Performance.StageTimeoutMs) * time.Millisecond,
			ErrorCenter:      s.errCenter,
		},
	)

	s.chatHandler = handlers.NewChatHandler(sched, executor, s.logger)
	return nil
}

// initHotReloadManager 初始化热更新管理器
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}

	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	// 注册配置变更回调
	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("Configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	// 注册配置重载回调
	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("Configuration reloaded")
		s.cfg = newConfig
	})

	// 启动热更新管理器
	ctx := context.Background()
	if err := s.hotReloadManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	// 创建配置 API 处理器
	s.configAPIHandler = config.NewConfigAPIHandler(s.hotReloadManager)

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器（使用新的 handlers）
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点（使用新的 HealthHandler）
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	if s.chatHandler != nil {
		mux.HandleFunc("/v1/chat/completions", s.chatHandler.HandleCompletions)
		mux.HandleFunc("/v1/messages", s.chatHandler.HandleMessages)
	}

	// ========================================
	// 配置管理 API
	// ========================================
	if s.configAPIHandler != nil {
		s.configAPIHandler.RegisterRoutes(mux)
		s.logger.Info("Configuration API registered")
	}

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(context.Background(), float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Role:            "proxy",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,   // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                        // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Role:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// 使用 httpManager 的 WaitForShutdown（它会监听信号）
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止热更新管理器
	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("Hot reload manager shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 OpenTelemetry providers
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 5. 停止错误中心的过期黑名单回收循环
	if s.errCenter != nil {
		s.errCenter.Stop()
	}

	// 6. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
