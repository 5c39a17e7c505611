// Copyright 2024 RelayForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package middleware provides request rewriters that run before a provider
call: cross-cutting cleanup of an outbound llm.ChatRequest, separate from
each provider's own wire encoding.

# Overview

A RequestRewriter mutates a *llm.ChatRequest and can reject it outright; a
RewriterChain runs a sequence of them in order, short-circuiting on the
first error. openaicompat.Provider and claude.ClaudeProvider both build
their chain the same way, seeded with EmptyToolsCleaner.

# Core types

  - RequestRewriter: Rewrite(ctx, *llm.ChatRequest) (*llm.ChatRequest, error), Name()
  - RewriterChain: ordered RequestRewriters, executed via Execute
  - EmptyToolsCleaner: clears ToolChoice when Tools is empty, since some
    upstreams reject a tool_choice with no tools to choose from
*/
package middleware
