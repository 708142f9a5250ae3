package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blueskyServer(t *testing.T, sessionHits, recordHits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com.atproto.server.createSession":
			sessionHits.Add(1)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req createSessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test.bsky.social", req.Identifier)
			assert.Equal(t, "test-password", req.Password)

			json.NewEncoder(w).Encode(createSessionResponse{
				DID:       "did:plc:test123",
				Handle:    "test.bsky.social",
				AccessJwt: "test-jwt-token",
			})

		case "/com.atproto.repo.createRecord":
			recordHits.Add(1)
			assert.Equal(t, "Bearer test-jwt-token", r.Header.Get("Authorization"))

			var req createRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "did:plc:test123", req.Repo)
			assert.Equal(t, "app.bsky.feed.post", req.Collection)
			assert.Equal(t, "app.bsky.feed.post", req.Record.Type)
			assert.NotEmpty(t, req.Record.Text)

			json.NewEncoder(w).Encode(createRecordResponse{
				URI: "at://did:plc:test123/app.bsky.feed.post/abc123",
				CID: "cid123",
			})

		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestNewBlueskyPoster(t *testing.T) {
	poster := NewBlueskyPoster(BlueskyConfig{
		Handle:      "test.bsky.social",
		AppPassword: "test-password",
	})

	assert.NotNil(t, poster)
	assert.Equal(t, "test.bsky.social", poster.handle)
	assert.Equal(t, defaultBlueskyBaseURL, poster.baseURL)
}

func TestBlueskyPoster_Platform(t *testing.T) {
	poster := NewBlueskyPoster(BlueskyConfig{})
	assert.Equal(t, "bluesky", poster.Platform())
}

func TestBlueskyPoster_ValidateCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("successful authentication", func(t *testing.T) {
		var sessionHits, recordHits atomic.Int32
		server := blueskyServer(t, &sessionHits, &recordHits)
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "test.bsky.social",
			AppPassword: "test-password",
			BaseURL:     server.URL,
		})

		require.NoError(t, poster.ValidateCredentials(ctx))
		assert.Equal(t, "test-jwt-token", poster.accessToken)
		assert.Equal(t, "did:plc:test123", poster.did)
	})

	t.Run("authentication failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "AuthenticationRequired"}`))
		}))
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "wrong.bsky.social",
			AppPassword: "bad",
			BaseURL:     server.URL,
		})

		err := poster.ValidateCredentials(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
	})
}

func TestBlueskyPoster_Post(t *testing.T) {
	ctx := context.Background()

	t.Run("posts and derives the public URL", func(t *testing.T) {
		var sessionHits, recordHits atomic.Int32
		server := blueskyServer(t, &sessionHits, &recordHits)
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "test.bsky.social",
			AppPassword: "test-password",
			BaseURL:     server.URL,
		})

		result, err := poster.Post(ctx, "Tech trends update 📊\n\ntest post")
		require.NoError(t, err)
		assert.Equal(t, "at://did:plc:test123/app.bsky.feed.post/abc123", result.PostID)
		assert.Equal(t, "https://bsky.app/profile/test.bsky.social/post/abc123", result.PostURL)
	})

	t.Run("authenticates once across posts", func(t *testing.T) {
		var sessionHits, recordHits atomic.Int32
		server := blueskyServer(t, &sessionHits, &recordHits)
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "test.bsky.social",
			AppPassword: "test-password",
			BaseURL:     server.URL,
		})

		_, err := poster.Post(ctx, "first")
		require.NoError(t, err)
		_, err = poster.Post(ctx, "second")
		require.NoError(t, err)

		assert.Equal(t, int32(1), sessionHits.Load())
		assert.Equal(t, int32(2), recordHits.Load())
	})

	t.Run("refuses over-limit text", func(t *testing.T) {
		var sessionHits, recordHits atomic.Int32
		server := blueskyServer(t, &sessionHits, &recordHits)
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "test.bsky.social",
			AppPassword: "test-password",
			BaseURL:     server.URL,
		})

		_, err := poster.Post(ctx, strings.Repeat("a", BlueskyMaxLength+1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit is 300")
		assert.Equal(t, int32(0), sessionHits.Load())
	})

	t.Run("surfaces post failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/com.atproto.server.createSession" {
				json.NewEncoder(w).Encode(createSessionResponse{
					DID:       "did:plc:test123",
					AccessJwt: "test-jwt-token",
				})
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "InvalidRequest"}`))
		}))
		defer server.Close()

		poster := NewBlueskyPoster(BlueskyConfig{
			Handle:      "test.bsky.social",
			AppPassword: "test-password",
			BaseURL:     server.URL,
		})

		_, err := poster.Post(ctx, "doomed post")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	})
}

func TestBlueskyPoster_postURL(t *testing.T) {
	poster := NewBlueskyPoster(BlueskyConfig{Handle: "test.bsky.social"})

	tests := []struct {
		uri      string
		expected string
	}{
		{"at://did:plc:xyz/app.bsky.feed.post/abc123", "https://bsky.app/profile/test.bsky.social/post/abc123"},
		{"did:plc:xyz/collection/rkey", "https://bsky.app/profile/test.bsky.social/post/rkey"},
		{"nonsense", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.expected, poster.postURL(tt.uri))
		})
	}
}

// Integration test - requires Bluesky credentials
func TestBlueskyPoster_Integration(t *testing.T) {
	handle := os.Getenv("BLUESKY_HANDLE")
	password := os.Getenv("BLUESKY_APP_PASSWORD")

	if handle == "" || password == "" {
		t.Skip("BLUESKY_HANDLE and BLUESKY_APP_PASSWORD not set")
	}

	poster := NewBlueskyPoster(BlueskyConfig{
		Handle:      handle,
		AppPassword: password,
	})

	ctx := context.Background()

	err := poster.ValidateCredentials(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, poster.accessToken)
	assert.NotEmpty(t, poster.did)

	// We don't post in tests to avoid spamming the live feed
}
