package normalizer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-shiori/go-readability"
)

// maxPageSize caps how much of an article page is read.
const maxPageSize = 4 << 20

// ReadabilityReader implements PageReader with go-readability.
type ReadabilityReader struct {
	client *http.Client
}

func NewReadabilityReader(client *http.Client) *ReadabilityReader {
	if client == nil {
		client = http.DefaultClient
	}

	return &ReadabilityReader{client: client}
}

func (r *ReadabilityReader) Read(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse article url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build article request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get article page: HTTP %d", resp.StatusCode)
	}

	doc, err := readability.FromReader(io.LimitReader(resp.Body, maxPageSize), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract article text: %w", err)
	}

	return cleanText(doc.TextContent), nil
}

// readability leaves long runs of blank lines behind
var redundantNewLines = regexp.MustCompile(`\n{3,}`)

func cleanText(text string) string {
	return redundantNewLines.ReplaceAllString(text, "\n")
}
