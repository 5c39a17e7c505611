// Copyright (c) RelayForge Authors.
// Licensed under the MIT License.

/*
Package main 提供 RelayForge 路由服务的可执行入口。

# 概述

cmd/relayforge 是请求路由运行时的可执行入口：加载 AssemblyTable 配置、
启动调度器与管线执行器、对外暴露 OpenAI/Anthropic 兼容端点及管理端点。
程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus 指标采集、
OpenTelemetry 链路追踪以及配置热重载。

# 核心类型

  - Server        — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware    — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（审计库迁移）、version、health
  - 中间件链：Recovery、RequestLogger、CORS、RateLimiter（基于 IP）、
    APIKeyAuth（X-API-Key；开启 allow_query_api_key 时也接受 query 参数）
  - 配置热重载：HotReloadManager 监听文件变更，重载后替换 Server 持有的配置；
    调度器、连接池与管线执行器不会随之重建
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止热更新 → 关闭 HTTP → 关闭 Metrics → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
