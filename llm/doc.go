// Copyright 2024 RelayForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides the provider abstraction the router dispatches requests
through once the scheduler has picked a (virtual model, provider, model) target.

# Overview

The llm package defines the Provider interface and the wire-neutral request
and response types (ChatRequest, ChatResponse, StreamChunk, Model,
HealthStatus) that every upstream adapter under llm/providers/* implements
against. Nothing above this package knows which upstream it is talking to;
llm/factory resolves a provider ID to a concrete Provider and everything
else — pipeline, protocol, streaming — speaks only these types.

# Provider Interface

	type Provider interface {
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
	    HealthCheck(ctx context.Context) (*HealthStatus, error)
	    Name() string
	    SupportsNativeFunctionCalling() bool
	    ListModels(ctx context.Context) ([]Model, error)
	}

# Supported Providers

	- OpenAI and OpenAI-compatible upstreams (llm/providers/openai, llm/providers/openaicompat)
	- Anthropic Claude (llm/providers/anthropic)
	- Alibaba Qwen / DashScope (llm/providers/qwen, built on openaicompat)

New upstreams are added by implementing Provider and registering a
constructor in llm/factory, not by touching this package.

# Usage

	provider := openai.NewOpenAIProvider(providers.OpenAIConfig{
	    BaseProviderConfig: providers.BaseProviderConfig{
	        APIKey: "your-api-key",
	        Model:  "gpt-4o",
	    },
	}, logger)

	resp, err := provider.Completion(ctx, &llm.ChatRequest{
	    Model: "gpt-4o",
	    Messages: []llm.Message{
	        {Role: llm.RoleUser, Content: "Hello!"},
	    },
	})

# Streaming

Providers emit StreamChunk values over a channel. The pipeline executor
relays a provider's chunks as they arrive; the backpressure and rate
limiting primitives in llm/streaming are used only when the Streaming
Adapter re-chunks a complete response into a stream:

	stream, err := provider.Stream(ctx, &llm.ChatRequest{
	    Model:    "gpt-4o",
	    Messages: messages,
	})
	if err != nil {
	    log.Fatal(err)
	}

	for chunk := range stream {
	    if chunk.Err != nil {
	        log.Printf("Error: %v", chunk.Err)
	        break
	    }
	    fmt.Print(chunk.Delta.Content)
	}

# Request Rewriting

llm/middleware holds RequestRewriters that mutate an outbound ChatRequest
before it reaches a provider's wire format — for example clearing a
tool_choice left on a request that carries no tools.

# Error Handling

The package defines structured error codes used across providers so the
scheduler can decide whether a failed attempt is worth retrying against the
next target in the pool:

	const (
	    ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	    ErrAuthentication      ErrorCode = "AUTHENTICATION"
	    ErrRateLimit           ErrorCode = "RATE_LIMIT"
	    ErrContextTooLong      ErrorCode = "CONTEXT_TOO_LONG"
	    ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	)

Use IsRetryable to check if an error can be retried:

	if llm.IsRetryable(err) {
	    // advance to the next pool entry
	}

See the subpackages for additional functionality:
  - llm/middleware: request rewriters run before a provider call
  - llm/streaming: backpressure and rate limiting for re-chunked responses
  - llm/factory: provider ID -> Provider construction
  - llm/providers/*: provider-specific implementations
*/
package llm
