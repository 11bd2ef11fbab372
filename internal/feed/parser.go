package feed

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var (
	// ErrTransport covers request building, network and non-200 responses.
	ErrTransport = errors.New("feed transport error")
	// ErrMalformed means the body was fetched but is not a parseable feed.
	ErrMalformed = errors.New("malformed feed")
)

const (
	DefaultTimeout = 30 * time.Second
	maxBodySize    = 20 << 20
)

// Parser is safe for concurrent use; each document gets its own gofeed parser.
type Parser struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewParser(httpClient *http.Client, userAgent string, timeout time.Duration) *Parser {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Parser{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Parse fetches url and parses the response body.
func (p *Parser) Parse(ctx context.Context, url string) (*Parsed, error) {
	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	parsed, err := p.Run(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("Feed parsed", "url", url, "title", parsed.Metadata.Title, "entries", len(parsed.Entries))
	return parsed, nil
}

// Run parses an already fetched feed document.
func (p *Parser) Run(data []byte) (*Parsed, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	parsed := &Parsed{
		Metadata: Metadata{
			Title:       strings.TrimSpace(feed.Title),
			Link:        feed.Link,
			Description: strings.TrimSpace(feed.Description),
		},
		Entries: make([]Entry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry := p.normalizeItem(item)
		if entry.GUID == "" {
			slog.Debug("Skipping item without guid or link", "title", entry.Title)
			continue
		}
		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:        strings.TrimSpace(cmp.Or(item.GUID, item.Link)),
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: cmp.Or(item.Content, item.Description),
		Summary:     item.Description,
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	}

	return entry
}

func (p *Parser) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
