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
	"time"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	TopP                *float32        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements CompletionClient for OpenAI models using raw net/http.
//
// Description:
//
//	Uses the OpenAI Chat Completions REST API directly without third-party
//	SDKs. The enrichment engine only needs plain chat, so function calling
//	and streaming are intentionally not supported.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit configuration.
//
// Description:
//
//	Creates an OpenAIClient without reading environment variables. Useful
//	for testing with mock servers or when configuration comes from a source
//	other than environment variables.
//
// Inputs:
//   - apiKey: The OpenAI API key.
//   - model: The model name (e.g., "gpt-4o").
//   - baseURL: The base URL for API requests.
//
// Outputs:
//   - *OpenAIClient: The configured client.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewOpenAIClient creates a new OpenAIClient from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY and OPENAI_MODEL from the environment.
//	Defaults to "gpt-4o-mini" if OPENAI_MODEL is not set.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		slog.Warn("OpenAI API Key is empty. OpenAI Client will not function.")
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultOpenAIBaseURL,
	}, nil
}

// Model returns the client's default model identifier.
func (o *OpenAIClient) Model() string {
	return o.model
}

// Chat implements CompletionClient.Chat using the OpenAI chat completions API.
//
// Description:
//
//	Converts Message values to OpenAI wire format and sends a chat
//	completion request via raw HTTP. Handles system, user, and assistant
//	roles; unknown roles are mapped to user.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history.
//   - params: Generation parameters. ModelOverride selects the model per call.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := o.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	slog.Debug("Chat via OpenAI", slog.String("model", model), slog.Int("messages", len(messages)))

	oaiMessages := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case "system", "user", "assistant":
			// valid roles, keep as-is
		default:
			slog.Warn("OpenAI: unknown message role, mapping to user",
				slog.String("unknown_role", role),
				slog.String("model", model),
			)
			role = "user"
		}
		oaiMessages = append(oaiMessages, openaiMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	reqPayload := openaiRequest{
		Model:    model,
		Messages: oaiMessages,
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		reqPayload.MaxCompletionTokens = params.MaxTokens
	}
	if params.TopP != nil {
		reqPayload.TopP = params.TopP
	}
	if len(params.Stop) > 0 {
		reqPayload.Stop = params.Stop
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("openai: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: returned no choices")
	}

	slog.Debug("Received OpenAI chat response",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)

	return apiResp.Choices[0].Message.Content, nil
}
