// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// =============================================================================
// Anthropic Wire Types
// =============================================================================

const (
	anthropicAPIVersion     = "2023-06-01"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"

	// anthropicDefaultMaxTokens is sent when the caller leaves MaxTokens nil.
	// The Messages API requires max_tokens, unlike OpenAI and Gemini.
	anthropicDefaultMaxTokens = 1024
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// AnthropicClient implements CompletionClient for Claude models using raw net/http.
//
// Description:
//
//	Uses the Anthropic Messages REST API directly. System messages are
//	lifted out of the message list into the top-level system field, which
//	is how the Messages API expects them.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewAnthropicClientWithConfig creates an AnthropicClient with explicit configuration.
//
// Inputs:
//   - apiKey: The Anthropic API key.
//   - model: The model name (e.g., "claude-sonnet-4-5").
//   - baseURL: The base URL for API requests.
//
// Outputs:
//   - *AnthropicClient: The configured client.
func NewAnthropicClientWithConfig(apiKey, model, baseURL string) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewAnthropicClient creates a new AnthropicClient from environment variables.
//
// Description:
//
//	Reads ANTHROPIC_API_KEY and ANTHROPIC_MODEL from the environment.
//	Defaults to "claude-3-5-haiku-latest" if ANTHROPIC_MODEL is not set.
//
// Outputs:
//   - *AnthropicClient: The configured client.
//   - error: Non-nil if ANTHROPIC_API_KEY is missing.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := os.Getenv("ANTHROPIC_MODEL")
	if apiKey == "" {
		slog.Warn("Anthropic API Key is empty. Anthropic Client will not function.")
		return nil, fmt.Errorf("anthropic: API key is missing (ANTHROPIC_API_KEY)")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
		slog.Warn("ANTHROPIC_MODEL not set, defaulting to claude-3-5-haiku-latest")
	}
	slog.Info("Initializing Anthropic client", "model", model)
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultAnthropicBaseURL,
	}, nil
}

// Model returns the client's default model identifier.
func (a *AnthropicClient) Model() string {
	return a.model
}

// Chat implements CompletionClient.Chat using the Anthropic Messages API.
//
// Description:
//
//	Converts Message values to Anthropic wire format. System messages are
//	concatenated into the top-level system prompt; only user and assistant
//	roles appear in the messages array. Unknown roles map to user.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history.
//   - params: Generation parameters. ModelOverride selects the model per call.
//
// Outputs:
//   - string: The assistant's response text (text blocks concatenated).
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (a *AnthropicClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := a.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	slog.Debug("Chat via Anthropic", slog.String("model", model), slog.Int("messages", len(messages)))

	var systemParts []string
	antMessages := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemParts = append(systemParts, msg.Content)
		case "user", "assistant":
			antMessages = append(antMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
		default:
			slog.Warn("Anthropic: unknown message role, mapping to user",
				slog.String("unknown_role", msg.Role),
				slog.String("model", model),
			)
			antMessages = append(antMessages, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	maxTokens := anthropicDefaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	reqPayload := anthropicRequest{
		Model:     model,
		Messages:  antMessages,
		System:    strings.Join(systemParts, "\n\n"),
		MaxTokens: maxTokens,
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}
	if params.TopP != nil {
		reqPayload.TopP = params.TopP
	}
	if len(params.Stop) > 0 {
		reqPayload.StopSeqs = params.Stop
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("anthropic: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: returned no text content")
	}

	slog.Debug("Received Anthropic chat response", slog.Int("response_len", sb.Len()))

	return sb.String(), nil
}
