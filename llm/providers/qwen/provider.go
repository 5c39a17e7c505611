package qwen

import (
	"github.com/relayforge/relayforge/llm/providers"
	"github.com/relayforge/relayforge/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Provider adapts Alibaba's DashScope Qwen models, which speak the OpenAI
// Chat Completions wire format under a "/compatible-mode" path prefix.
type Provider struct {
	*openaicompat.Provider
}

// NewQwenProvider builds a Qwen provider from the router's resolved pool
// config, defaulting BaseURL to the public DashScope endpoint.
func NewQwenProvider(cfg providers.QwenConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dashscope.aliyuncs.com"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "qwen",
			APIKey:        cfg.APIKey,
			APIKeys:       cfg.APIKeys,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "qwen3-235b-a22b",
			Timeout:       cfg.Timeout,
			EndpointPath:  "/compatible-mode/v1/chat/completions",
		}, logger),
	}
}
