package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/database/dbtest"
	"github.com/lysyi3m/rss-inbox/internal/feed"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
	"github.com/lysyi3m/rss-inbox/internal/reader"
	"github.com/lysyi3m/rss-inbox/internal/tasks"
)

const testFeedURL = "https://example.com/rss"

type stubParser struct {
	mu     sync.Mutex
	parsed map[string]*feed.Parsed
}

func (p *stubParser) set(url string, guids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := make([]feed.Entry, 0, len(guids))
	for _, guid := range guids {
		entries = append(entries, feed.Entry{GUID: guid, Title: "Entry " + guid, Link: "https://example.com/" + guid})
	}
	p.parsed[url] = &feed.Parsed{Metadata: feed.Metadata{Title: "Example"}, Entries: entries}
}

func (p *stubParser) Parse(_ context.Context, url string) (*feed.Parsed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	parsed, ok := p.parsed[url]
	if !ok {
		return nil, fmt.Errorf("%w: HTTP error: 404 Not Found", feed.ErrTransport)
	}
	return parsed, nil
}

type recordingScheduler struct {
	mu    sync.Mutex
	tasks []tasks.TaskInterface
	err   error
}

func (s *recordingScheduler) Start() {}
func (s *recordingScheduler) Stop()  {}

func (s *recordingScheduler) EnqueueTask(task tasks.TaskInterface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *recordingScheduler) queued() []tasks.TaskInterface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tasks.TaskInterface(nil), s.tasks...)
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

type testServer struct {
	engine    *gin.Engine
	store     *database.SQLStore
	parser    *stubParser
	scheduler *recordingScheduler
	cache     *memoryCache
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := dbtest.NewStore(t)
	parser := &stubParser{parsed: make(map[string]*feed.Parsed)}
	orchestrator := ingest.NewOrchestrator(store, parser)
	service := reader.NewService(store, orchestrator.Fanout())

	scheduler := &recordingScheduler{}

	rssCache := &memoryCache{values: make(map[string]string)}

	handler := NewHandler(store, orchestrator, service, scheduler, rssCache, time.Minute, "test")
	return &testServer{
		engine:    NewServer(handler, apiKey),
		store:     store,
		parser:    parser,
		scheduler: scheduler,
		cache:     rssCache,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// registerFeed creates testFeedURL through the API and syncs it once.
func (s *testServer) registerFeed(t *testing.T, guids ...string) feedResponse {
	t.Helper()
	s.parser.set(testFeedURL, guids...)

	w := s.do(t, http.MethodPost, "/api/feeds", gin.H{"url": testFeedURL})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f := decode[feedResponse](t, w)

	stored, err := s.store.GetFeed(context.Background(), f.ID)
	require.NoError(t, err)
	_, err = ingest.NewOrchestrator(s.store, s.parser).SyncFeed(context.Background(), *stored)
	require.NoError(t, err)

	return f
}

func (s *testServer) subscribe(t *testing.T, userID, feedID int64) subscriptionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/subscriptions", userID), gin.H{"feed_id": feedID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Subscription subscriptionResponse `json:"subscription"`
	}](t, w).Subscription
}

func (s *testServer) entries(t *testing.T, subID int64) []entryResponse {
	t.Helper()
	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/subscriptions/%d/entries", subID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Entries []entryResponse `json:"entries"`
	}](t, w).Entries
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret")

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.EqualValues(t, 0, body["feeds"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "secret")

	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{name: "missing key", want: http.StatusUnauthorized},
		{name: "wrong key", headers: []string{"X-API-Key", "nope"}, want: http.StatusUnauthorized},
		{name: "header key", headers: []string{"X-API-Key", "secret"}, want: http.StatusOK},
		{name: "bearer key", headers: []string{"Authorization", "Bearer secret"}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/feeds", nil, tt.headers...)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCreateFeed(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodPost, "/api/feeds", gin.H{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/feeds", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/feeds", gin.H{"url": "https://example.com/missing"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	s.parser.set(testFeedURL, "a1")
	w = s.do(t, http.MethodPost, "/api/feeds", gin.H{"url": testFeedURL})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[feedResponse](t, w)
	assert.Equal(t, "Example", created.Title)
	assert.True(t, created.Active)

	// New feeds get a sync queued.
	queued := s.scheduler.queued()
	require.Len(t, queued, 1)
	assert.Equal(t, tasks.TaskTypeSyncFeed, queued[0].GetType())
	assert.Equal(t, created.ID, queued[0].GetFeedID())

	w = s.do(t, http.MethodPost, "/api/feeds", gin.H{"url": testFeedURL})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[feedResponse](t, w).ID)
}

func TestListFeeds(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1", "a2")

	w := s.do(t, http.MethodGet, "/api/feeds", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Feeds []feedResponse `json:"feeds"`
		Total int            `json:"total"`
	}](t, w)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, f.ID, body.Feeds[0].ID)
	require.NotNil(t, body.Feeds[0].EntryCount)
	assert.Equal(t, 2, *body.Feeds[0].EntryCount)
}

func TestSyncFeedEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1")

	w := s.do(t, http.MethodPost, "/api/feeds/abc/sync", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/feeds/9999/sync", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/feeds/%d/sync", f.ID), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), string(tasks.TaskTypeSyncFeed)))
	assert.Len(t, s.scheduler.queued(), 2)

	s.scheduler.err = tasks.ErrQueueFull
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/feeds/%d/sync", f.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubscribeAndReadFlow(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1", "a2")

	sub := s.subscribe(t, 42, f.ID)
	assert.Equal(t, int64(42), sub.UserID)

	w := s.do(t, http.MethodPost, "/api/users/42/subscriptions", gin.H{"feed_id": f.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/users/42/subscriptions", gin.H{"feed_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	entries := s.entries(t, sub.ID)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.IsRead)
	}

	target := entries[0].EntryID
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/subscriptions/%d/entries/%d", sub.ID, target), gin.H{"is_read": true})
	require.Equal(t, http.StatusNoContent, w.Code)

	for _, e := range s.entries(t, sub.ID) {
		assert.Equal(t, e.EntryID == target, e.IsRead)
	}

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/subscriptions/%d/entries/9999", sub.ID), gin.H{"is_read": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/subscriptions/9999/entries", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshSubscription(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1")
	sub := s.subscribe(t, 1, f.ID)

	s.parser.set(testFeedURL, "a1", "a2", "a3")

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/subscriptions/%d/refresh", sub.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, syncResponse{EntriesAdded: 2, SubscriptionsUpdated: 1, UserEntriesAdded: 2}, decode[syncResponse](t, w))
	assert.Len(t, s.entries(t, sub.ID), 3)

	s.parser.mu.Lock()
	delete(s.parser.parsed, testFeedURL)
	s.parser.mu.Unlock()

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/subscriptions/%d/refresh", sub.ID), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, s.entries(t, sub.ID), 3)
}

func TestRefreshSubscriptionAsync(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1")
	sub := s.subscribe(t, 1, f.ID)
	before := len(s.scheduler.queued())

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/subscriptions/%d/refresh?async=true", sub.ID), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), string(tasks.TaskTypeSyncSubscription))

	queued := s.scheduler.queued()
	require.Len(t, queued, before+1)
	task, ok := queued[len(queued)-1].(*tasks.SyncSubscriptionTask)
	require.True(t, ok)
	assert.Equal(t, sub.ID, task.Subscription.ID)

	s.scheduler.err = tasks.ErrQueueFull
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/subscriptions/%d/refresh?async=true", sub.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnsubscribe(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1")
	sub := s.subscribe(t, 1, f.ID)

	w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/users/1/subscriptions/%d", f.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/subscriptions/%d/entries", sub.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/users/1/subscriptions/%d", f.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionRSS(t *testing.T) {
	s := newTestServer(t, "")
	f := s.registerFeed(t, "a1", "a2")
	sub := s.subscribe(t, 1, f.ID)

	archived := s.entries(t, sub.ID)[0]
	w := s.do(t, http.MethodPatch, fmt.Sprintf("/api/subscriptions/%d/entries/%d", sub.ID, archived.EntryID), gin.H{"is_archived": true})
	require.Equal(t, http.StatusNoContent, w.Code)

	rssPath := fmt.Sprintf("/api/subscriptions/%d/rss", sub.ID)

	w = s.do(t, http.MethodGet, rssPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "1", w.Header().Get("X-Feed-Items"))
	assert.NotContains(t, w.Body.String(), ">"+archived.GUID+"</guid>")
	first := w.Body.String()

	w = s.do(t, http.MethodGet, rssPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, first, w.Body.String())

	// State changes drop the cached document.
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/subscriptions/%d/entries/%d", sub.ID, archived.EntryID), gin.H{"is_archived": false})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, rssPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "2", w.Header().Get("X-Feed-Items"))
}
