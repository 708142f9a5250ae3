package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
	defaultClaudeModel   = "claude-sonnet-4-20250514"
	claudeMaxTokens      = 1024
)

const insightSystemPrompt = "You are an analyst summarizing technology discussion trends " +
	"for a developer audience. Respond with strict JSON only, no surrounding prose."

const insightPrompt = `Analyze the following %d technology trends and respond with a JSON object
{"insights": string, "sentiment": number}.

%s

The insights field covers, in under 300 words: emerging themes, technologies gaining
traction, and implications for developers. The sentiment field is a single number
between -1 (very negative) and 1 (very positive) for the overall mood of the data.`

// ClaudeInsighter generates insights with the Claude API.
type ClaudeInsighter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// ClaudeConfig holds configuration for the Claude insighter.
type ClaudeConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint for tests.
	BaseURL string
}

// NewClaudeInsighter creates a Claude-backed Insighter.
func NewClaudeInsighter(cfg ClaudeConfig) *ClaudeInsighter {
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}

	return &ClaudeInsighter{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Summarize prompts Claude with the digest and parses the JSON reply.
// Both the digest and the model's output must pass moderation.
func (c *ClaudeInsighter) Summarize(ctx context.Context, d Digest) (Insight, error) {
	if mod := Moderate(d.Text); !mod.Safe {
		return Insight{}, fmt.Errorf("digest rejected by moderation: %s", mod.Reason())
	}

	prompt := fmt.Sprintf(insightPrompt, d.Total, d.Text)

	response, err := c.complete(ctx, insightSystemPrompt, prompt)
	if err != nil {
		return Insight{}, fmt.Errorf("complete: %w", err)
	}

	var parsed struct {
		Insights  string  `json:"insights"`
		Sentiment float64 `json:"sentiment"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		// The model may wrap the JSON in prose
		raw, extractErr := extractJSONObject(response)
		if extractErr != nil {
			return Insight{}, fmt.Errorf("parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return Insight{}, fmt.Errorf("parse extracted JSON: %w", err)
		}
	}

	if mod := Moderate(parsed.Insights); !mod.Safe {
		return Insight{}, fmt.Errorf("generated insights rejected by moderation: %s", mod.Reason())
	}

	return Insight{Text: parsed.Insights, Sentiment: parsed.Sentiment}, nil
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends one completion request to Claude.
func (c *ClaudeInsighter) complete(ctx context.Context, system, user string) (string, error) {
	req := claudeRequest{
		Model:     c.model,
		MaxTokens: claudeMaxTokens,
		System:    system,
		Messages: []claudeMessage{
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if claudeResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", claudeResp.Error.Type, claudeResp.Error.Message)
	}

	if len(claudeResp.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	return claudeResp.Content[0].Text, nil
}

// extractJSONObject finds the first balanced JSON object in a response
// that may contain other text.
func extractJSONObject(response string) (string, error) {
	start := -1
	for i, c := range response {
		if c == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("malformed JSON object in response")
}
