package source

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

const userAgent = "news-aggregator/1.0 (+https://github.com/kovalyov-valentin/news-aggregator)"

// RSSSource fetches one RSS, Atom or JSON feed.
type RSSSource struct {
	feed   model.Feed
	client *http.Client
}

func NewRSSSourceFromModel(feed model.Feed, client *http.Client) RSSSource {
	if client == nil {
		client = http.DefaultClient
	}

	return RSSSource{feed: feed, client: client}
}

func (s RSSSource) Feed() model.Feed {
	return s.feed
}

// Fetch downloads and parses the feed. Items keep the order of the document.
// Cancellation and deadlines come from ctx.
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	parser := gofeed.NewParser()
	parser.Client = s.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(s.feed.URL, ctx)
	if err != nil {
		return nil, classifyError(s.feed.URL, err)
	}

	return lo.Map(feed.Items, func(item *gofeed.Item, _ int) model.Item {
		return toModelItem(feed, item)
	}), nil
}

func toModelItem(feed *gofeed.Feed, item *gofeed.Item) model.Item {
	out := model.Item{
		Title:           strings.TrimSpace(item.Title),
		Link:            strings.TrimSpace(item.Link),
		GUID:            item.GUID,
		Published:       item.Published,
		Updated:         item.Updated,
		PublishedParsed: item.PublishedParsed,
		UpdatedParsed:   item.UpdatedParsed,
		Categories:      item.Categories,
		Description:     item.Description,
		Content:         item.Content,
		EncodedContent:  encodedContent(feed, item),
		MediaContent:    mediaURLs(item.Extensions, "content"),
		MediaThumbnail:  mediaURLs(item.Extensions, "thumbnail"),
		FeedTitle:       strings.TrimSpace(feed.Title),
	}

	if out.Link == "" && strings.HasPrefix(item.GUID, "http") {
		out.Link = item.GUID
	}

	if item.Image != nil {
		out.ImageURL = item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		out.Enclosures = append(out.Enclosures, model.Enclosure{URL: enc.URL, Type: enc.Type})
	}

	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		out.Creator = strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}

	if item.Author != nil {
		out.Author = strings.TrimSpace(lo.Ternary(item.Author.Name != "", item.Author.Name, item.Author.Email))
	}

	return out
}

// encodedContent returns content:encoded. The RSS parser folds it into
// Item.Content, so for RSS documents the two are the same field.
func encodedContent(feed *gofeed.Feed, item *gofeed.Item) string {
	if values := item.Extensions["content"]["encoded"]; len(values) > 0 {
		return values[0].Value
	}

	if feed.FeedType == "rss" {
		return item.Content
	}

	return ""
}

// mediaURLs collects url attributes of media:<name> elements, including the
// ones nested in media:group and media:content.
func mediaURLs(extensions ext.Extensions, name string) []string {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	var urls []string

	var walk func(elements []ext.Extension)
	walk = func(elements []ext.Extension) {
		for _, el := range elements {
			if u := strings.TrimSpace(el.Attrs["url"]); u != "" && el.Name == name {
				urls = append(urls, u)
			}
			walk(el.Children[name])
		}
	}

	walk(media[name])
	for _, group := range media["group"] {
		walk(group.Children[name])
	}
	if name != "content" {
		for _, content := range media["content"] {
			walk(content.Children[name])
		}
	}

	return lo.Uniq(urls)
}
