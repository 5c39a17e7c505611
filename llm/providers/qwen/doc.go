// Copyright 2024 RelayForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package qwen adapts Alibaba's DashScope Qwen models to llm.Provider.

# Overview

Provider embeds openaicompat.Provider and points it at DashScope's
compatible-mode endpoint, which speaks the OpenAI Chat Completions wire
format. The default model is qwen3-235b-a22b.

# Core types

  - Provider — embeds openaicompat.Provider; inherits Completion, Stream,
    HealthCheck, and ListModels unchanged.
*/
package qwen
