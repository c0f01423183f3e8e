package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

const articleColumns = `id, category, title, content, image, link, source, author, published_at, created_at`

type ArticlePostgresStorage struct {
	db *sqlx.DB
}

func NewArticleStorage(db *sqlx.DB) *ArticlePostgresStorage {
	return &ArticlePostgresStorage{db: db}
}

// ArticleFilter selects a page of articles. Empty strings match everything.
type ArticleFilter struct {
	Category string
	Source   string
	Limit    int
	Offset   int
}

func (s *ArticlePostgresStorage) Exists(ctx context.Context, link string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM news_data WHERE link = $1)`, link); err != nil {
		return false, fmt.Errorf("check article %s: %w", link, err)
	}

	return exists, nil
}

// Store inserts the article. It returns false when another article with the
// same link is already there; existing rows are never updated.
func (s *ArticlePostgresStorage) Store(ctx context.Context, article model.Article) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO news_data (id, category, title, content, image, link, source, author, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (link) DO NOTHING`,
		article.ID,
		article.Category,
		article.Title,
		article.Content,
		article.Image,
		article.Link,
		article.Source,
		article.Author,
		article.PublishedAt,
		article.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.Link, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.Link, err)
	}

	return affected > 0, nil
}

// DeleteOlderThan removes articles published strictly before cutoff.
func (s *ArticlePostgresStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM news_data WHERE published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete articles before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	return res.RowsAffected()
}

// List returns a page of articles, newest first, and the total number of matches.
func (s *ArticlePostgresStorage) List(ctx context.Context, filter ArticleFilter) ([]model.Article, int, error) {
	countQuery := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countQuery.Select("COUNT(*)").From("news_data")
	applyFilter(countQuery, filter)

	query, args := countQuery.Build()

	var total int
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	if total == 0 {
		return []model.Article{}, 0, nil
	}

	pageQuery := sqlbuilder.PostgreSQL.NewSelectBuilder()
	pageQuery.Select(articleColumns).From("news_data")
	applyFilter(pageQuery, filter)
	pageQuery.OrderBy("published_at DESC", "id")
	if filter.Limit > 0 {
		pageQuery.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		pageQuery.Offset(filter.Offset)
	}

	query, args = pageQuery.Build()

	articles, err := s.selectArticles(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}

	return articles, total, nil
}

func applyFilter(sb *sqlbuilder.SelectBuilder, filter ArticleFilter) {
	if filter.Category != "" {
		sb.Where(sb.Equal("category", filter.Category))
	}
	if filter.Source != "" {
		sb.Where(sb.Equal("source", filter.Source))
	}
}

// ByCategory returns every article of a category, newest first.
func (s *ArticlePostgresStorage) ByCategory(ctx context.Context, category string) ([]model.Article, error) {
	articles, err := s.selectArticles(
		ctx,
		`SELECT `+articleColumns+` FROM news_data WHERE category = $1 ORDER BY published_at DESC, id`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s articles: %w", category, err)
	}

	return articles, nil
}

// Search matches query as a case-insensitive substring of title, content or category.
func (s *ArticlePostgresStorage) Search(ctx context.Context, query string) ([]model.Article, error) {
	pattern := "%" + escapeLike(query) + "%"

	articles, err := s.selectArticles(
		ctx,
		`SELECT `+articleColumns+` FROM news_data
		WHERE title ILIKE $1 OR content ILIKE $1 OR category ILIKE $1
		ORDER BY published_at DESC, id`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	return articles, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *ArticlePostgresStorage) selectArticles(ctx context.Context, query string, args ...any) ([]model.Article, error) {
	var rows []dbArticle
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	return lo.Map(rows, func(row dbArticle, _ int) model.Article {
		return model.Article(row)
	}), nil
}

type dbArticle struct {
	ID          string    `db:"id"`
	Category    string    `db:"category"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	Image       *string   `db:"image"`
	Link        string    `db:"link"`
	Source      string    `db:"source"`
	Author      string    `db:"author"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}
