package normalizer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

type ImageStrategy string

const (
	ImageMediaContent   ImageStrategy = "media_content"
	ImageMediaThumbnail ImageStrategy = "media_thumbnail"
	ImageEnclosure      ImageStrategy = "enclosure"
	ImageItemImage      ImageStrategy = "item_image"
	ImageHTML           ImageStrategy = "html_img"
)

type ContentStrategy string

const (
	ContentEncoded     ContentStrategy = "encoded"
	ContentBody        ContentStrategy = "content"
	ContentDescription ContentStrategy = "description"
	ContentSnippet     ContentStrategy = "snippet"
	// ContentArticlePage downloads the article and extracts its readable text.
	ContentArticlePage ContentStrategy = "article_page"
)

var (
	DefaultImageStrategies = []ImageStrategy{
		ImageMediaContent, ImageMediaThumbnail, ImageEnclosure, ImageItemImage, ImageHTML,
	}
	DefaultContentStrategies = []ContentStrategy{
		ContentEncoded, ContentBody, ContentDescription, ContentSnippet,
	}
)

// imageExtractors return a raw, possibly relative, image URL or "".
var imageExtractors = map[ImageStrategy]func(model.Item) string{
	ImageMediaContent:   func(it model.Item) string { return first(it.MediaContent) },
	ImageMediaThumbnail: func(it model.Item) string { return first(it.MediaThumbnail) },
	ImageEnclosure:      enclosureImage,
	ImageItemImage:      func(it model.Item) string { return it.ImageURL },
	ImageHTML:           embeddedImage,
}

// contentExtractors are pure; ContentArticlePage is handled by the Normalizer
// because it needs the network.
var contentExtractors = map[ContentStrategy]func(model.Item) string{
	ContentEncoded:     func(it model.Item) string { return it.EncodedContent },
	ContentBody:        func(it model.Item) string { return it.Content },
	ContentDescription: func(it model.Item) string { return it.Description },
	ContentSnippet:     snippet,
}

// ValidateStrategies reports unknown strategy names in a feed descriptor.
func ValidateStrategies(feed model.Feed) error {
	for _, name := range feed.ImageStrategies {
		if _, ok := imageExtractors[ImageStrategy(name)]; !ok {
			return fmt.Errorf("unknown image strategy %q for %s", name, feed.URL)
		}
	}

	for _, name := range feed.ContentStrategies {
		s := ContentStrategy(name)
		if _, ok := contentExtractors[s]; !ok && s != ContentArticlePage {
			return fmt.Errorf("unknown content strategy %q for %s", name, feed.URL)
		}
	}

	return nil
}

func imageStrategiesFor(feed model.Feed) []ImageStrategy {
	if len(feed.ImageStrategies) == 0 {
		return DefaultImageStrategies
	}

	out := make([]ImageStrategy, 0, len(feed.ImageStrategies))
	for _, name := range feed.ImageStrategies {
		out = append(out, ImageStrategy(name))
	}

	return out
}

func contentStrategiesFor(feed model.Feed) []ContentStrategy {
	if len(feed.ContentStrategies) == 0 {
		return DefaultContentStrategies
	}

	out := make([]ContentStrategy, 0, len(feed.ContentStrategies))
	for _, name := range feed.ContentStrategies {
		out = append(out, ContentStrategy(name))
	}

	return out
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

func enclosureImage(it model.Item) string {
	for _, enc := range it.Enclosures {
		if enc.Type == "" || strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}

	return ""
}

// embeddedImage returns the src of the first <img> found in the item's HTML bodies.
func embeddedImage(it model.Item) string {
	for _, body := range []string{it.EncodedContent, it.Content, it.Description} {
		if !strings.Contains(body, "<img") {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			continue
		}

		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
	}

	return ""
}

// snippet is the whitespace-collapsed plain text of the richest HTML body.
func snippet(it model.Item) string {
	for _, body := range []string{it.EncodedContent, it.Content, it.Description} {
		if strings.TrimSpace(body) == "" {
			continue
		}

		if text := plainText(body); text != "" {
			return text
		}
	}

	return ""
}

func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
