package middleware

import (
	"context"

	llmpkg "github.com/relayforge/relayforge/llm"
)

// EmptyToolsCleaner 空工具列表清理器
// 当请求的 Tools 为空时，清除 ToolChoice 字段
// 避免上游 API 返回 400 错误（OpenAI 不允许空 tools 数组时设置 tool_choice）
type EmptyToolsCleaner struct{}

// Name 返回改写器名称
func (r *EmptyToolsCleaner) Name() string {
	return "empty_tools_cleaner"
}

// Rewrite 执行改写
func (r *EmptyToolsCleaner) Rewrite(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if req == nil {
		return req, nil
	}

	// 如果 Tools 为空（nil 或空数组），清除 ToolChoice
	if len(req.Tools) == 0 {
		req.ToolChoice = ""
		return req, nil
	}

	req.Tools = dedupeToolsByName(req.Tools)

	// ToolChoice 引用的工具名不在 Tools 列表中时同样清除，
	// 避免上游因 tool_choice 指向一个不存在的工具而报错
	if req.ToolChoice != "" && req.ToolChoice != "auto" && req.ToolChoice != "none" && req.ToolChoice != "required" {
		found := false
		for _, t := range req.Tools {
			if t.Name == req.ToolChoice {
				found = true
				break
			}
		}
		if !found {
			req.ToolChoice = ""
		}
	}

	return req, nil
}

// NewEmptyToolsCleaner 创建空工具清理器
func NewEmptyToolsCleaner() *EmptyToolsCleaner {
	return &EmptyToolsCleaner{}
}

// dedupeToolsByName 按 Name 去重，同名工具保留 Version 较新（字典序更大）的定义；
// 版本号相同或缺失时保留先出现的一个，维持调用方声明的原始顺序。
func dedupeToolsByName(tools []llmpkg.ToolSchema) []llmpkg.ToolSchema {
	seen := make(map[string]int, len(tools))
	out := make([]llmpkg.ToolSchema, 0, len(tools))

	for _, t := range tools {
		if idx, ok := seen[t.Name]; ok {
			if t.Version > out[idx].Version {
				out[idx] = t
			}
			continue
		}
		seen[t.Name] = len(out)
		out = append(out, t)
	}

	return out
}
