package fetcher_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-aggregator/internal/fetcher"
	"github.com/kovalyov-valentin/news-aggregator/internal/gate"
	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/normalizer"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
)

type stubSource struct {
	feed  model.Feed
	items []model.Item
	err   error
}

func (s stubSource) Feed() model.Feed {
	return s.feed
}

func (s stubSource) Fetch(_ context.Context) ([]model.Item, error) {
	return s.items, s.err
}

type memoryStore struct {
	mu       sync.Mutex
	articles map[string]model.Article
}

func newMemoryStore() *memoryStore {
	return &memoryStore{articles: make(map[string]model.Article)}
}

func (m *memoryStore) Exists(_ context.Context, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.articles[link]
	return ok, nil
}

func (m *memoryStore) Store(_ context.Context, article model.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articles[article.Link]; ok {
		return false, nil
	}
	m.articles[article.Link] = article
	return true, nil
}

type statusCall struct {
	feedURL string
	ok      bool
	reason  string
	items   int
	stored  int
}

type recorder struct {
	mu    sync.Mutex
	calls []statusCall
}

func (r *recorder) RecordSuccess(_ context.Context, feed model.Feed, _ time.Time, items, stored int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, statusCall{feedURL: feed.URL, ok: true, items: items, stored: stored})
	return nil
}

func (r *recorder) RecordFailure(_ context.Context, feed model.Feed, _ time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, statusCall{feedURL: feed.URL, reason: reason})
	return nil
}

type stalledSource struct {
	feed model.Feed
}

func (s stalledSource) Feed() model.Feed {
	return s.feed
}

func (s stalledSource) Fetch(ctx context.Context) ([]model.Item, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func goodItem(link string) model.Item {
	return model.Item{
		Title:          "Story " + link,
		Link:           link,
		EncodedContent: strings.Repeat("body ", 30),
		MediaContent:   []string{"https://cdn.example.com/" + strings.TrimPrefix(link, "https://") + ".jpg"},
	}
}

func newFetcher(feeds []model.Feed, sources map[string]stubSource, store *memoryStore, keywords []string) *fetcher.Fetcher {
	return newFetcherWithPool(feeds, sources, store, keywords, 2)
}

func newFetcherWithPool(
	feeds []model.Feed,
	sources map[string]stubSource,
	store *memoryStore,
	keywords []string,
	concurrency int,
) *fetcher.Fetcher {
	factory := func(feed model.Feed) fetcher.Source {
		return sources[feed.URL]
	}

	return fetcher.NewFetcher(
		feeds,
		factory,
		normalizer.New(nil, logger.NewNop()),
		gate.New(store, 100),
		time.Second,
		concurrency,
		keywords,
		logger.NewNop(),
	)
}

func TestFetch_FailureIsolation(t *testing.T) {
	feeds := []model.Feed{
		{URL: "https://a.example.com/rss", Category: "tech"},
		{URL: "https://b.example.com/rss", Category: "tech"},
		{URL: "https://c.example.com/rss", Category: "science"},
	}
	fetchErr := &source.FetchError{Kind: source.KindHTTPStatus, URL: feeds[1].URL, StatusCode: 503}
	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{goodItem("https://a.example.com/1")}},
		feeds[1].URL: {feed: feeds[1], err: fetchErr},
		feeds[2].URL: {feed: feeds[2], items: []model.Item{goodItem("https://c.example.com/1"), goodItem("https://c.example.com/2")}},
	}
	store := newMemoryStore()
	statuses := &recorder{}

	reports := newFetcher(feeds, sources, store, nil).WithStatusRecorder(statuses).Fetch(context.Background())

	require.Len(t, reports, 3)
	assert.Equal(t, feeds[0].URL, reports[0].Feed.URL)
	assert.Equal(t, 1, reports[0].Stored)
	assert.NoError(t, reports[0].Err)

	assert.ErrorIs(t, reports[1].Err, fetchErr)
	assert.Zero(t, reports[1].Fetched)

	assert.Equal(t, 2, reports[2].Stored)
	assert.Len(t, store.articles, 3)

	require.Len(t, statuses.calls, 3)
	for _, call := range statuses.calls {
		if call.feedURL == feeds[1].URL {
			assert.False(t, call.ok)
			assert.Contains(t, call.reason, "HTTP 503")
			continue
		}
		assert.True(t, call.ok)
	}
}

func TestFetch_IsIdempotent(t *testing.T) {
	feeds := []model.Feed{{URL: "https://a.example.com/rss", Category: "tech"}}
	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{
			goodItem("https://a.example.com/1"),
			goodItem("https://a.example.com/2"),
		}},
	}
	store := newMemoryStore()
	f := newFetcher(feeds, sources, store, nil)

	first := f.Fetch(context.Background())
	second := f.Fetch(context.Background())

	assert.Equal(t, 2, first[0].Stored)
	assert.Zero(t, second[0].Stored)
	assert.Equal(t, 2, second[0].Duplicates)
	assert.Len(t, store.articles, 2)
}

func TestFetch_SameLinkInTwoFeeds(t *testing.T) {
	feeds := []model.Feed{
		{URL: "https://a.example.com/rss", Category: "news"},
		{URL: "https://b.example.com/rss", Category: "business"},
	}
	shared := goodItem("https://wire.example.com/story")
	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{shared}},
		feeds[1].URL: {feed: feeds[1], items: []model.Item{shared}},
	}
	store := newMemoryStore()

	reports := newFetcher(feeds, sources, store, nil).Fetch(context.Background())

	assert.Equal(t, 1, reports[0].Stored+reports[1].Stored)
	assert.Equal(t, 1, reports[0].Duplicates+reports[1].Duplicates)
	assert.Len(t, store.articles, 1)
}

func TestFetch_RejectedCopyDoesNotHideEligibleOne(t *testing.T) {
	feeds := []model.Feed{
		{URL: "https://a.example.com/rss", Category: "news"},
		{URL: "https://b.example.com/rss", Category: "business"},
	}
	link := "https://wire.example.com/story"
	noImage := goodItem(link)
	noImage.MediaContent = nil

	for _, concurrency := range []int{1, 2} {
		sources := map[string]stubSource{
			feeds[0].URL: {feed: feeds[0], items: []model.Item{noImage}},
			feeds[1].URL: {feed: feeds[1], items: []model.Item{goodItem(link)}},
		}
		store := newMemoryStore()
		f := newFetcherWithPool(feeds, sources, store, nil, concurrency)

		reports := f.Fetch(context.Background())
		assert.Equal(t, 1, reports[0].Rejected)
		assert.Equal(t, 1, reports[1].Stored)
		assert.Zero(t, reports[1].Duplicates)
		require.Contains(t, store.articles, link)
		assert.Equal(t, "business", store.articles[link].Category)

		again := f.Fetch(context.Background())
		assert.Equal(t, 1, again[1].Duplicates)
		assert.Len(t, store.articles, 1)
	}
}

func TestFetch_RejectedCopyWithinOneFeed(t *testing.T) {
	feeds := []model.Feed{{URL: "https://a.example.com/rss", Category: "tech"}}
	link := "https://a.example.com/1"
	short := goodItem(link)
	short.EncodedContent = "too short"

	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{short, goodItem(link)}},
	}
	store := newMemoryStore()

	reports := newFetcherWithPool(feeds, sources, store, nil, 1).Fetch(context.Background())

	assert.Equal(t, 1, reports[0].Rejected)
	assert.Equal(t, 1, reports[0].Stored)
	assert.Contains(t, store.articles, link)
}

func TestFetch_StalledFeedTimesOut(t *testing.T) {
	feeds := []model.Feed{
		{URL: "https://slow.example.com/rss", Category: "tech"},
		{URL: "https://fast.example.com/rss", Category: "tech"},
	}
	sources := map[string]fetcher.Source{
		feeds[0].URL: stalledSource{feed: feeds[0]},
		feeds[1].URL: stubSource{feed: feeds[1], items: []model.Item{goodItem("https://fast.example.com/1")}},
	}
	store := newMemoryStore()
	statuses := &recorder{}

	f := fetcher.NewFetcher(
		feeds,
		func(feed model.Feed) fetcher.Source { return sources[feed.URL] },
		normalizer.New(nil, logger.NewNop()),
		gate.New(store, 100),
		50*time.Millisecond,
		1,
		nil,
		logger.NewNop(),
	).WithStatusRecorder(statuses)

	done := make(chan []fetcher.FeedReport, 1)
	go func() {
		done <- f.Fetch(context.Background())
	}()

	var reports []fetcher.FeedReport
	select {
	case reports = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stalled feed blocked the pass")
	}

	assert.ErrorIs(t, reports[0].Err, context.DeadlineExceeded)
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 1, reports[1].Stored)
	assert.Contains(t, store.articles, "https://fast.example.com/1")

	require.Len(t, statuses.calls, 2)
	assert.False(t, statuses.calls[0].ok)
	assert.True(t, statuses.calls[1].ok)
}

func TestFetch_CountsRejections(t *testing.T) {
	feeds := []model.Feed{{URL: "https://a.example.com/rss", Category: "tech"}}
	noImage := goodItem("https://a.example.com/2")
	noImage.MediaContent = nil
	short := goodItem("https://a.example.com/3")
	short.EncodedContent = "too short"

	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{goodItem("https://a.example.com/1"), noImage, short}},
	}

	reports := newFetcher(feeds, sources, newMemoryStore(), nil).Fetch(context.Background())

	assert.Equal(t, 3, reports[0].Fetched)
	assert.Equal(t, 1, reports[0].Stored)
	assert.Equal(t, 2, reports[0].Rejected)
}

func TestFetch_KeywordFilter(t *testing.T) {
	feeds := []model.Feed{{URL: "https://a.example.com/rss", Category: "tech"}}
	sponsored := goodItem("https://a.example.com/1")
	sponsored.Title = "Sponsored: Best Laptops"
	tagged := goodItem("https://a.example.com/2")
	tagged.Categories = []string{"Crypto"}

	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{sponsored, tagged, goodItem("https://a.example.com/3")}},
	}
	store := newMemoryStore()

	reports := newFetcher(feeds, sources, store, []string{"Sponsored", "crypto", ""}).Fetch(context.Background())

	assert.Equal(t, 2, reports[0].Filtered)
	assert.Equal(t, 1, reports[0].Stored)
	assert.Contains(t, store.articles, "https://a.example.com/3")
}

func TestFetch_CancelledContext(t *testing.T) {
	feeds := []model.Feed{{URL: "https://a.example.com/rss", Category: "tech"}}
	sources := map[string]stubSource{
		feeds[0].URL: {feed: feeds[0], items: []model.Item{goodItem("https://a.example.com/1")}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	statuses := &recorder{}

	reports := newFetcher(feeds, sources, newMemoryStore(), nil).WithStatusRecorder(statuses).Fetch(ctx)

	assert.True(t, errors.Is(reports[0].Err, context.Canceled))
	assert.Zero(t, reports[0].Stored)

	require.Len(t, statuses.calls, 1)
	assert.False(t, statuses.calls[0].ok)
	assert.Contains(t, statuses.calls[0].reason, "context canceled")
}
