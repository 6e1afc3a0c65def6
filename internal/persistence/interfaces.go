// Package persistence provides database abstraction interfaces for storing
// articles, knowledge entities, and digests.
package persistence

import (
	"context"
	"time"

	"pulse/internal/core"
)

// ArticleRepository handles article persistence operations
type ArticleRepository interface {
	// UpsertBatch inserts articles, skipping URLs that already exist.
	// It returns the rows that were actually inserted, with IDs assigned.
	UpsertBatch(ctx context.Context, articles []core.Article) ([]core.Article, error)

	// ExistingURLs reports which of the given URLs are already stored
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)

	// Get retrieves an article by ID
	Get(ctx context.Context, id string) (*core.Article, error)

	// GetByIDs retrieves the articles with the given IDs
	GetByIDs(ctx context.Context, ids []string) ([]core.Article, error)

	// GetSince retrieves articles fetched after a given time, most important first
	GetSince(ctx context.Context, since time.Time, limit int) ([]core.Article, error)

	// MarkEntitiesExtracted flags articles as covered by entity resolution
	MarkEntitiesExtracted(ctx context.Context, ids []string) error

	// GetPendingEntityExtraction retrieves articles at or above minImportance
	// not yet covered by entity resolution, oldest first
	GetPendingEntityExtraction(ctx context.Context, minImportance, limit int) ([]core.Article, error)

	// CountPendingEntityExtraction counts articles at or above minImportance
	// awaiting entity resolution
	CountPendingEntityExtraction(ctx context.Context, minImportance int) (int, error)
}

// EntityRepository handles knowledge entity persistence operations
type EntityRepository interface {
	// FindSimilar retrieves entities whose name similarity to the query name
	// is at least threshold, using trigram matching
	FindSimilar(ctx context.Context, name string, threshold float64) ([]core.EntityMatch, error)

	// Get retrieves an entity by ID
	Get(ctx context.Context, id string) (*core.KnowledgeEntity, error)

	// GetBySlug retrieves an entity by its slug
	GetBySlug(ctx context.Context, slug string) (*core.KnowledgeEntity, error)

	// Create inserts a new entity. If the slug already exists the stored
	// entity is returned unchanged.
	Create(ctx context.Context, entity core.KnowledgeEntity) (core.KnowledgeEntity, error)

	// Update rewrites an existing entity
	Update(ctx context.Context, entity core.KnowledgeEntity) error

	// TopByMentions retrieves the most-mentioned entities
	TopByMentions(ctx context.Context, limit int) ([]core.KnowledgeEntity, error)
}

// DigestRepository handles digest persistence operations
type DigestRepository interface {
	// UpsertByDate inserts or replaces the digest for its date
	UpsertByDate(ctx context.Context, digest core.Digest) (core.Digest, error)

	// GetLatest retrieves the most recent digest
	GetLatest(ctx context.Context) (*core.Digest, error)

	// SetWeeklySummary attaches a weekly summary to a digest
	SetWeeklySummary(ctx context.Context, id string, summary string) error
}

// Database is the top-level persistence handle
type Database interface {
	Articles() ArticleRepository
	Entities() EntityRepository
	Digests() DigestRepository

	Ping(ctx context.Context) error
	Close() error
}
