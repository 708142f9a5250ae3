package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/source"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	}
}

func TestNew(t *testing.T) {
	t.Run("minimal config", func(t *testing.T) {
		cfg := testConfig(t)

		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()

		assert.NotNil(t, a.Store)
		assert.NotNil(t, a.Collector)
		assert.NotNil(t, a.Analyzer)
		assert.NotNil(t, a.Status)

		// Nothing optional is configured.
		assert.Nil(t, a.Publisher)
		assert.Nil(t, a.Poster)
		assert.Nil(t, a.Index)
		assert.Nil(t, a.Notifier)

		// Credential-free sources are available, the rest are not.
		assert.True(t, a.Status.Status(source.HackerNews).Available)
		assert.True(t, a.Status.Status(source.GitHub).Available)
		assert.False(t, a.Status.Status(source.Twitter).Available)
		assert.False(t, a.Status.Status(source.Reddit).Available)
	})

	t.Run("bluesky credentials enable publishing", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.BlueskyHandle = "bot.bsky.social"
		cfg.BlueskyAppPassword = "app-password"

		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()

		assert.NotNil(t, a.Publisher)
		require.NotNil(t, a.Poster)
		assert.Equal(t, "bluesky", a.Poster.Platform())
	})

	t.Run("credentialed sources become available", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.TwitterBearerToken = "bearer"
		cfg.RedditClientID = "id"
		cfg.RedditClientSecret = "secret"

		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()

		assert.True(t, a.Status.Status(source.Twitter).Available)
		assert.True(t, a.Status.Status(source.Reddit).Available)
	})

	t.Run("veclite path enables the index", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.VecLitePath = filepath.Join(t.TempDir(), "index.veclite")
		cfg.NotifyHandle = "ops.bsky.social"

		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()

		assert.NotNil(t, a.Index)
		assert.NotNil(t, a.Notifier)
	})
}

func TestApp_Close(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.NoError(t, a.Close())
}
