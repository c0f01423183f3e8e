package source

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/normalizer"
)

//go:embed sources.toml
var defaultRegistry []byte

type tomlRegistry struct {
	Feeds []tomlFeed `toml:"feeds"`
}

type tomlFeed struct {
	URL      string   `toml:"url"`
	Category string   `toml:"category"`
	Name     string   `toml:"name"`
	Image    []string `toml:"image"`
	Content  []string `toml:"content"`
}

// Registry is the static, validated list of configured feeds.
type Registry struct {
	feeds []model.Feed
}

// LoadRegistry reads the registry from path, or the embedded default when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	data := defaultRegistry

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sources file: %w", err)
		}
		data = raw
	}

	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var raw tomlRegistry
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	if len(raw.Feeds) == 0 {
		return nil, fmt.Errorf("parse sources: no feeds configured")
	}

	seen := make(map[string]struct{}, len(raw.Feeds))
	feeds := make([]model.Feed, 0, len(raw.Feeds))

	for i, f := range raw.Feeds {
		feed := model.Feed{
			URL:               strings.TrimSpace(f.URL),
			Category:          strings.ToLower(strings.TrimSpace(f.Category)),
			Name:              strings.TrimSpace(f.Name),
			ImageStrategies:   f.Image,
			ContentStrategies: f.Content,
		}

		if err := validateFeed(feed); err != nil {
			return nil, fmt.Errorf("parse sources: feed #%d: %w", i+1, err)
		}

		if _, dup := seen[feed.URL]; dup {
			return nil, fmt.Errorf("parse sources: feed #%d: duplicate url %s", i+1, feed.URL)
		}
		seen[feed.URL] = struct{}{}

		feeds = append(feeds, feed)
	}

	return &Registry{feeds: feeds}, nil
}

func validateFeed(feed model.Feed) error {
	u, err := url.Parse(feed.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q", feed.URL)
	}

	if feed.Category == "" {
		return fmt.Errorf("missing category for %s", feed.URL)
	}

	return normalizer.ValidateStrategies(feed)
}

// Feeds returns all feeds in configuration order.
func (r *Registry) Feeds() []model.Feed {
	return append([]model.Feed(nil), r.feeds...)
}

// Categories returns the distinct categories in configuration order.
func (r *Registry) Categories() []string {
	return lo.Uniq(lo.Map(r.feeds, func(f model.Feed, _ int) string {
		return f.Category
	}))
}

// ByCategory groups the feeds by category.
func (r *Registry) ByCategory() map[string][]model.Feed {
	return lo.GroupBy(r.feeds, func(f model.Feed) string {
		return f.Category
	})
}
