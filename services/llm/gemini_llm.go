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
// Gemini Wire Types
// =============================================================================

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiRequest is the request payload for the Gemini generateContent API.
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// geminiResponse is the response from the Gemini generateContent API.
type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// GeminiClient implements CompletionClient for Gemini models using raw net/http.
//
// Description:
//
//	Uses the Gemini REST API (generateContent). System messages are sent
//	via systemInstruction; assistant messages map to the "model" role.
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGeminiClientWithConfig creates a GeminiClient with explicit configuration.
//
// Inputs:
//   - apiKey: The Gemini API key.
//   - model: The model name (e.g., "gemini-2.0-flash").
//   - baseURL: The base URL for API requests
//     (e.g., "https://generativelanguage.googleapis.com/v1beta").
//
// Outputs:
//   - *GeminiClient: The configured client.
func NewGeminiClientWithConfig(apiKey, model, baseURL string) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewGeminiClient creates a new GeminiClient from environment variables.
//
// Description:
//
//	Reads GEMINI_API_KEY and GEMINI_MODEL from the environment.
//	Defaults to "gemini-2.0-flash" if GEMINI_MODEL is not set.
//
// Outputs:
//   - *GeminiClient: The configured client.
//   - error: Non-nil if GEMINI_API_KEY is missing.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	model := os.Getenv("GEMINI_MODEL")
	if apiKey == "" {
		slog.Warn("Gemini API Key is empty. Gemini Client will not function.")
		return nil, fmt.Errorf("gemini: API key is missing (GEMINI_API_KEY)")
	}
	if model == "" {
		model = "gemini-2.0-flash"
		slog.Warn("GEMINI_MODEL not set, defaulting to gemini-2.0-flash")
	}
	slog.Info("Initializing Gemini client", "model", model)
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
	}, nil
}

// Model returns the client's default model identifier.
func (g *GeminiClient) Model() string {
	return g.model
}

// Chat implements CompletionClient.Chat using the Gemini generateContent API.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history.
//   - params: Generation parameters. ModelOverride selects the model per call.
//
// Outputs:
//   - string: The first candidate's text parts concatenated.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := g.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	slog.Debug("Chat via Gemini", slog.String("model", model), slog.Int("messages", len(messages)))

	var systemParts []string
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemParts = append(systemParts, msg.Content)
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		case "user":
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			slog.Warn("Gemini: unknown message role, mapping to user",
				slog.String("unknown_role", msg.Role),
				slog.String("model", model),
			)
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	reqPayload := geminiRequest{Contents: contents}
	if len(systemParts) > 0 {
		reqPayload.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	if params.Temperature != nil || params.TopP != nil || params.MaxTokens != nil || len(params.Stop) > 0 {
		reqPayload.GenerationConfig = &geminiGenerationConfig{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			MaxOutputTokens: params.MaxTokens,
			StopSequences:   params.Stop,
		}
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("gemini: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("gemini: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("gemini: API error: %s - %s", apiResp.Error.Status, SafeLogString(apiResp.Error.Message))
	}

	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: returned no candidates")
	}

	var sb strings.Builder
	for _, part := range apiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	slog.Debug("Received Gemini chat response",
		slog.String("finish_reason", apiResp.Candidates[0].FinishReason),
		slog.Int("response_len", sb.Len()),
	)

	return sb.String(), nil
}
