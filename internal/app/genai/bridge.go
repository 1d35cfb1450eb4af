/*
Package genai contains the boundary to the external text-generation backend.

This file defines the Bridge, a thin client for an OpenAI-style Responses API.
The call is a plain blocking HTTP request; callers that must not block their
scheduler submit prompts through the Pool instead of calling Generate directly.
Every transport, authentication, or malformed-response problem is converted
into a returned error with a human-readable cause; nothing escapes as a panic.
*/
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// responsesPath is the endpoint path of the Responses API, relative to the configured base URL.
	responsesPath = "/v1/responses"

	// requestTimeout bounds a single generation call.
	requestTimeout = 60 * time.Second
)

// BridgeConfig holds the settings required to reach the generation backend.
type BridgeConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Bridge invokes the text-generation backend and extracts a flat text answer
// from its structured response.
type Bridge struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewBridge constructs a Bridge from the given configuration.
func NewBridge(cfg BridgeConfig) *Bridge {
	return &Bridge{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// responsesBody mirrors the subset of the Responses API body the bridge reads.
// OutputText is the primary extraction path; when it is absent the output
// items are walked as a fallback before the response is declared unusable.
type responsesBody struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt to the backend and returns the generated text.
// It blocks for the duration of the HTTP call, bounded by ctx and the client timeout.
func (b *Bridge) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model: b.model,
		Input: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+responsesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating generation request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error contacting generation backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed responsesBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("error unmarshaling generation response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("generation backend error: %s", parsed.Error.Message)
	}

	text := extractText(parsed)
	if text == "" {
		return "", fmt.Errorf("generation response contained no text")
	}

	return text, nil
}

// extractText pulls the flat answer text out of the structured response.
func extractText(parsed responsesBody) string {
	if trimmed := strings.TrimSpace(parsed.OutputText); trimmed != "" {
		return trimmed
	}

	var sb strings.Builder
	for _, item := range parsed.Output {
		for _, content := range item.Content {
			sb.WriteString(content.Text)
		}
	}

	return strings.TrimSpace(sb.String())
}

// truncate shortens s to at most n bytes for inclusion in error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
