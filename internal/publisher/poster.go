package publisher

import (
	"context"
)

// PostResult is the platform's receipt for a published post.
type PostResult struct {
	// PostID is the platform-native identifier (an AT URI on Bluesky).
	PostID string

	// PostURL is the human-viewable URL, when one can be derived.
	PostURL string
}

// Poster is the interface for posting to a social platform.
type Poster interface {
	// Platform returns the name of the platform.
	Platform() string

	// Post publishes text to the platform.
	Post(ctx context.Context, text string) (*PostResult, error)

	// ValidateCredentials checks that the configured credentials work.
	ValidateCredentials(ctx context.Context) error
}
