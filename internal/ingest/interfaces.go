package ingest

import (
	"context"

	"github.com/lysyi3m/rss-inbox/internal/feed"
)

// FeedParser fetches and parses a feed document. Implementations classify
// failures with feed.ErrTransport or feed.ErrMalformed.
type FeedParser interface {
	Parse(ctx context.Context, url string) (*feed.Parsed, error)
}
