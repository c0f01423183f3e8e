// Package normalizer turns raw feed items into article candidates using the
// per-feed strategy tables.
package normalizer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

// PageReader fetches an article page and returns its readable text.
type PageReader interface {
	Read(ctx context.Context, link string) (string, error)
}

type Normalizer struct {
	pages PageReader
	now   func() time.Time
	log   logger.Logger
}

// New creates a normalizer. pages may be nil, in which case the article_page
// strategy never yields content.
func New(pages PageReader, log logger.Logger) *Normalizer {
	return &Normalizer{
		pages: pages,
		now:   time.Now,
		log:   log,
	}
}

// WithClock overrides the ingestion clock used for missing publish dates.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize never fails: missing fields fall back to defaults and the gate
// decides whether the candidate is good enough to keep.
func (n *Normalizer) Normalize(ctx context.Context, feed model.Feed, item model.Item) model.Candidate {
	return model.Candidate{
		Category:    feed.Category,
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Content:     n.content(ctx, feed, item),
		Image:       image(feed, item),
		Source:      firstNonEmpty(feed.Name, item.FeedTitle, model.UnknownValue),
		Author:      firstNonEmpty(item.Creator, item.Author, model.UnknownValue),
		PublishedAt: n.publishedAt(item),
	}
}

func image(feed model.Feed, item model.Item) *string {
	for _, strategy := range imageStrategiesFor(feed) {
		extract, ok := imageExtractors[strategy]
		if !ok {
			continue
		}

		if resolved := resolveURL(extract(item), item.Link); resolved != "" {
			return &resolved
		}
	}

	return nil
}

func (n *Normalizer) content(ctx context.Context, feed model.Feed, item model.Item) string {
	for _, strategy := range contentStrategiesFor(feed) {
		var text string

		if strategy == ContentArticlePage {
			text = n.readPage(ctx, item.Link)
		} else if extract, ok := contentExtractors[strategy]; ok {
			text = extract(item)
		}

		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	return ""
}

func (n *Normalizer) readPage(ctx context.Context, link string) string {
	if n.pages == nil || link == "" {
		return ""
	}

	text, err := n.pages.Read(ctx, link)
	if err != nil {
		n.log.Debug("article page extraction failed", logger.String("link", link), logger.Error(err))
		return ""
	}

	return text
}

// publishedAt falls back to the ingestion time when the feed has no usable
// date. Such articles sort as fresh and are evicted a full horizon later.
func (n *Normalizer) publishedAt(item model.Item) time.Time {
	switch {
	case item.PublishedParsed != nil && !item.PublishedParsed.IsZero():
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero():
		return item.UpdatedParsed.UTC()
	default:
		return n.now().UTC()
	}
}

// resolveURL makes raw absolute against base and keeps only http(s) results.
func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if !ref.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			if !strings.HasPrefix(raw, "//") {
				return ""
			}
			baseURL = &url.URL{Scheme: "https"}
		}
		ref = baseURL.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}

	return ref.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
