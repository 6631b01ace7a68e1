// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides provider-agnostic completion clients for the Summit
// enrichment service. Each provider (OpenAI, Anthropic, Gemini) is wrapped
// behind the same minimal CompletionClient interface so the enrichment
// engine can swap providers and models without caring about wire formats.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"
	"fmt"
	"os"
)

// Message is a single role-tagged entry in a conversation.
//
// Role is one of "system", "user", or "assistant". Providers that do not
// accept a given role map it to the closest equivalent.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams holds provider-agnostic decoding parameters.
//
// Description:
//
//	Pointer fields are omitted from the provider request when nil so each
//	provider's server-side default applies. ModelOverride selects a model
//	for a single call without reconstructing the client; the enrichment
//	engine uses it to route escalation calls to the fallback model.
type GenerationParams struct {
	// Temperature controls randomness (0.0-1.0). Nil uses the provider default.
	Temperature *float32

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// TopP is the nucleus sampling parameter. Nil uses the provider default.
	TopP *float32

	// Stop lists stop sequences. Empty omits the field.
	Stop []string

	// ModelOverride selects the model for this request only. Empty uses the
	// model the client was constructed with.
	ModelOverride string
}

// CompletionClient is the minimal chat interface consumed by the enrichment
// engine.
//
// Description:
//
//	The engine only needs simple chat (no tool calls, no streaming). This
//	minimal interface makes adapters trivial for any provider and keeps the
//	engine testable with a function-field mock.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CompletionClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - params: Provider-agnostic decoding parameters.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Model returns the client's default model identifier.
	Model() string
}

// Provider identifiers accepted by NewClientFromEnv.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// NewClientFromEnv constructs a CompletionClient for the provider named in
// the LLM_PROVIDER environment variable.
//
// Description:
//
//	Defaults to "openai" when LLM_PROVIDER is unset. Each constructor reads
//	its own provider-specific environment variables (API key, model).
//
// Outputs:
//   - CompletionClient: The configured client.
//   - error: Non-nil if the provider name is unknown or its API key is missing.
func NewClientFromEnv() (CompletionClient, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = ProviderOpenAI
	}
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient()
	case ProviderAnthropic:
		return NewAnthropicClient()
	case ProviderGemini:
		return NewGeminiClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (want openai, anthropic, or gemini)", provider)
	}
}
