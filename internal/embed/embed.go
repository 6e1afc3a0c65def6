// Package embed attaches vector embeddings to articles so downstream
// similarity search and entity work can rank them.
package embed

import (
	"context"
	"time"

	"pulse/internal/batch"
	"pulse/internal/core"
	"pulse/internal/logger"
)

const (
	// ChunkSize limits concurrent embedding calls per chunk.
	ChunkSize = 5
	// ChunkDelay spaces chunks to stay inside embedding rate limits.
	ChunkDelay = 200 * time.Millisecond
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Stage computes embeddings for a batch of articles.
type Stage struct {
	llm Embedder
}

func NewStage(embedder Embedder) *Stage {
	return &Stage{llm: embedder}
}

// EmbedBatch fills in the Embedding field on each article. An article whose
// embedding call fails keeps a nil embedding and is still returned; the
// store keeps it and similarity features simply skip it.
func (s *Stage) EmbedBatch(ctx context.Context, articles []core.Article) []core.Article {
	results, errs := batch.Run(ctx, articles,
		batch.Options{ChunkSize: ChunkSize, Delay: ChunkDelay},
		func(a core.Article) string { return a.URL },
		func(ctx context.Context, a core.Article) ([]float64, error) {
			return s.llm.Embed(ctx, EmbeddingText(a))
		},
	)

	for _, e := range errs {
		logger.Warn("Embedding call failed", "error", e)
	}

	out := make([]core.Article, 0, len(articles))
	for _, a := range articles {
		if vec, ok := results[a.URL]; ok {
			a.Embedding = vec
		}
		out = append(out, a)
	}
	return out
}

// EmbeddingText is the canonical text embedded for an article.
func EmbeddingText(a core.Article) string {
	if a.Summary == "" {
		return a.Title
	}
	return a.Title + ". " + a.Summary
}
