package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claudeReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	response := claudeResponse{
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{
			{Type: "text", Text: text},
		},
		StopReason: "end_turn",
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func TestNewClaudeInsighter(t *testing.T) {
	t.Run("uses defaults", func(t *testing.T) {
		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test"})
		assert.Equal(t, defaultClaudeModel, c.model)
		assert.Equal(t, defaultClaudeBaseURL, c.baseURL)
	})

	t.Run("uses custom model", func(t *testing.T) {
		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", Model: "claude-3-opus"})
		assert.Equal(t, "claude-3-opus", c.model)
	})
}

func TestClaudeInsighter_Summarize(t *testing.T) {
	ctx := context.Background()
	digest := Digest{
		Total: 3,
		Text:  "\nHACKERNEWS:\n1. Go 1.25 released (score: 300): the release notes\n",
	}

	t.Run("parses a strict JSON reply", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
			assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

			var req claudeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, defaultClaudeModel, req.Model)
			assert.NotEmpty(t, req.System)
			require.Len(t, req.Messages, 1)
			assert.Contains(t, req.Messages[0].Content, "HACKERNEWS")

			claudeReply(t, w, `{"insights": "Strong release momentum in the Go ecosystem.", "sentiment": 0.4}`)
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test-api-key", BaseURL: server.URL})

		insight, err := c.Summarize(ctx, digest)
		require.NoError(t, err)
		assert.Equal(t, "Strong release momentum in the Go ecosystem.", insight.Text)
		assert.Equal(t, 0.4, insight.Sentiment)
	})

	t.Run("recovers JSON wrapped in prose", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claudeReply(t, w, "Here is the analysis you asked for:\n\n"+
				`{"insights": "Interest in AI tooling keeps climbing.", "sentiment": -0.2}`+
				"\n\nHope this helps!")
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", BaseURL: server.URL})

		insight, err := c.Summarize(ctx, digest)
		require.NoError(t, err)
		assert.Equal(t, "Interest in AI tooling keeps climbing.", insight.Text)
		assert.Equal(t, -0.2, insight.Sentiment)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"type": "overloaded_error"}}`, http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", BaseURL: server.URL})

		_, err := c.Summarize(ctx, digest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("rejects an unsafe digest without calling out", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", BaseURL: server.URL})

		_, err := c.Summarize(ctx, Digest{
			Total: 1,
			Text:  "\nREDDIT:\n1. leaked config (score: 10): the admin password is hunter2\n",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest rejected by moderation")
		assert.Equal(t, int32(0), hits.Load())
	})

	t.Run("rejects unsafe generated insights", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claudeReply(t, w, `{"insights": "Reach me at analyst@example.com for details.", "sentiment": 0}`)
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", BaseURL: server.URL})

		_, err := c.Summarize(ctx, digest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generated insights rejected by moderation")
	})

	t.Run("errors on an empty completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"content": [], "stop_reason": "end_turn"}`))
		}))
		defer server.Close()

		c := NewClaudeInsighter(ClaudeConfig{APIKey: "test", BaseURL: server.URL})

		_, err := c.Summarize(ctx, digest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty response")
	})
}

func TestExtractJSONObject(t *testing.T) {
	t.Run("extracts a bare object", func(t *testing.T) {
		got, err := extractJSONObject(`{"insights": "x", "sentiment": 0.1}`)
		require.NoError(t, err)
		assert.Equal(t, `{"insights": "x", "sentiment": 0.1}`, got)
	})

	t.Run("extracts from surrounding prose", func(t *testing.T) {
		got, err := extractJSONObject("Sure thing:\n{\"insights\": \"x\"}\nDone.")
		require.NoError(t, err)
		assert.Equal(t, `{"insights": "x"}`, got)
	})

	t.Run("handles nested objects", func(t *testing.T) {
		got, err := extractJSONObject(`noise {"a": {"b": 2}} trailing`)
		require.NoError(t, err)
		assert.Equal(t, `{"a": {"b": 2}}`, got)
	})

	t.Run("ignores braces inside strings", func(t *testing.T) {
		got, err := extractJSONObject(`{"a": "close me }{ not here"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"a": "close me }{ not here"}`, got)
	})

	t.Run("error on no object", func(t *testing.T) {
		_, err := extractJSONObject("just text, no JSON")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no JSON object found")
	})

	t.Run("error on unbalanced braces", func(t *testing.T) {
		_, err := extractJSONObject(`{"a": 1`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed")
	})
}
