package model

import "time"

const UnknownValue = "Unknown"

// Item is a single feed entry as the parser saw it, before normalization.
type Item struct {
	Title string
	Link  string
	GUID  string
	// Raw date strings as they appeared in the feed
	Published string
	Updated   string
	// Parsed variants, nil when the feed omitted or mangled the date
	PublishedParsed *time.Time
	UpdatedParsed   *time.Time
	Categories      []string

	Description string
	// Atom content or the parser's pick for RSS
	Content string
	// content:encoded
	EncodedContent string

	// media:content and media:thumbnail URLs in document order
	MediaContent   []string
	MediaThumbnail []string
	Enclosures     []Enclosure
	// <image> of the item itself, if any
	ImageURL string

	// dc:creator
	Creator string
	Author  string

	// Title of the feed the item came from
	FeedTitle string
}

type Enclosure struct {
	URL  string
	Type string
}

// Feed describes one configured source. Extraction rules are named strategies
// resolved by the normalizer.
type Feed struct {
	URL      string
	Category string
	// Optional display name; the feed title is used when empty
	Name              string
	ImageStrategies   []string
	ContentStrategies []string
}

// Candidate is a normalized item ready for the persistence gate.
type Candidate struct {
	Category    string
	Title       string
	Link        string
	Content     string
	Image       *string
	Source      string
	Author      string
	PublishedAt time.Time
}

// Article as stored.
type Article struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Image       *string   `json:"image"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FeedStatus is the last known polling state of a feed.
type FeedStatus struct {
	FeedURL             string     `json:"feedUrl"`
	Category            string     `json:"category"`
	LastPolledAt        time.Time  `json:"lastPolledAt"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt"`
	LastError           *string    `json:"lastError"`
	LastItemCount       int        `json:"lastItemCount"`
	LastStoredCount     int        `json:"lastStoredCount"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}
