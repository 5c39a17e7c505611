// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于 LLM 请求的 Token 预算管理。
// 两种实现的 Name() 均以 "<策略>[:模型]" 形式返回，
// 便于从日志与成本指标中区分精确计数与估算回退。
package tokenizer
