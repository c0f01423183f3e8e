// Package gate decides which normalized candidates become stored articles.
package gate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

type ArticleStorage interface {
	Exists(ctx context.Context, link string) (bool, error)
	// Store returns false when the link is already taken.
	Store(ctx context.Context, article model.Article) (bool, error)
}

type Outcome string

const (
	Stored    Outcome = "stored"
	Duplicate Outcome = "duplicate"
	Rejected  Outcome = "rejected"
	Failed    Outcome = "failed"
)

type Reason string

const (
	ReasonMissingLink  Reason = "missing_link"
	ReasonMissingTitle Reason = "missing_title"
	ReasonNoImage      Reason = "no_image"
	ReasonShortContent Reason = "short_content"
)

// Result is the verdict for a single candidate. Reason is set for rejections,
// Err for failures.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Article model.Article
	Err     error
}

type Gate struct {
	articles         ArticleStorage
	minContentLength int
	now              func() time.Time
	newID            func() string
}

func New(articles ArticleStorage, minContentLength int) *Gate {
	return &Gate{
		articles:         articles,
		minContentLength: minContentLength,
		now:              time.Now,
		newID:            uuid.NewString,
	}
}

// WithClock overrides the clock used for createdAt.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Admit runs the candidate through the existence check and the quality rules
// and stores it when it passes. It never returns an error directly: storage
// problems come back as a Failed result so the caller can carry on.
func (g *Gate) Admit(ctx context.Context, candidate model.Candidate) Result {
	if strings.TrimSpace(candidate.Link) == "" {
		return Result{Outcome: Rejected, Reason: ReasonMissingLink}
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return Result{Outcome: Rejected, Reason: ReasonMissingTitle}
	}

	exists, err := g.articles.Exists(ctx, candidate.Link)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if exists {
		return Result{Outcome: Duplicate}
	}

	if reason, ok := g.quality(candidate); !ok {
		return Result{Outcome: Rejected, Reason: reason}
	}

	article := model.Article{
		ID:          g.newID(),
		Category:    candidate.Category,
		Title:       candidate.Title,
		Content:     candidate.Content,
		Image:       candidate.Image,
		Link:        candidate.Link,
		Source:      candidate.Source,
		Author:      candidate.Author,
		PublishedAt: candidate.PublishedAt.UTC(),
		CreatedAt:   g.now().UTC(),
	}

	inserted, err := g.articles.Store(ctx, article)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if !inserted {
		// lost a race with another writer between Exists and Store
		return Result{Outcome: Duplicate}
	}

	return Result{Outcome: Stored, Article: article}
}

func (g *Gate) quality(candidate model.Candidate) (Reason, bool) {
	if candidate.Image == nil || strings.TrimSpace(*candidate.Image) == "" {
		return ReasonNoImage, false
	}
	if utf8.RuneCountInString(candidate.Content) < g.minContentLength {
		return ReasonShortContent, false
	}

	return "", true
}
