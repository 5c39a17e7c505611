// Copyright (c) RelayForge Authors.
// Licensed under the MIT License.

/*
Package types 提供 RelayForge 路由核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 credentials、auth、
providers、compat、streaming、protocol、pipeline、errctr、scheduler
等上层模块提供统一的类型契约。所有跨包共享的接口、结构体、枚举和
错误码均定义于此，以避免循环依赖。

# 核心接口与类型

  - Message              — 对话消息（Role、Content、ToolCalls、Images）
  - ToolSchema/ToolResult — 工具定义与执行结果
  - Error / ErrorCode     — Provider 级结构化错误，含 HTTP 状态码、Retryable 标记
  - PipelineError         — 管线级结构化错误：category/severity/recoverability/impact

工具参数的 JSON Schema 由 ToolSchema.Parameters（json.RawMessage）承载，
实际的严格校验交给 compat.Validator（基于第三方 jsonschema 包），本包
不再重复定义 Schema 构建器。
*/
package types
