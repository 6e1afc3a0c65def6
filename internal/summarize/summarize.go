// Package summarize turns raw feed items into scored, categorized article
// records. Every per-item failure (call error, malformed JSON, invalid shape)
// is a skip, never a pipeline error.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pulse/internal/batch"
	"pulse/internal/core"
	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/sources"
)

const (
	// ContentCharLimit bounds how much article body is sent to the model.
	ContentCharLimit = 4000
	// ChunkSize is the number of concurrent summarization calls per chunk.
	ChunkSize = 5
	// ChunkDelay is the pause between chunks, the stage's only rate limiting.
	ChunkDelay = 500 * time.Millisecond
	// MaxTags caps the number of tags kept per article.
	MaxTags = 5
)

// Completer is the slice of the LLM client this stage needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
}

// Stage summarizes raw items in rate-limited batches.
type Stage struct {
	llm Completer
}

// NewStage creates a summarization stage using the given completion service.
func NewStage(completer Completer) *Stage {
	return &Stage{llm: completer}
}

// response is the JSON shape the model is asked to return.
type response struct {
	IsAIRelated       *bool    `json:"is_ai_related"`
	Summary           string   `json:"summary"`
	KeyTakeaway       string   `json:"key_takeaway"`
	ImportanceScore   *int     `json:"importance_score"`
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	MentionedEntities []string `json:"mentioned_entities"`
}

// SummarizeBatch summarizes items in chunks of ChunkSize with ChunkDelay
// between chunks. Items the model flags as off-topic, and items whose call
// fails or returns malformed data, are simply absent from the result. The
// returned order follows the input order of the survivors.
func (s *Stage) SummarizeBatch(ctx context.Context, items []core.RawItem) []core.SummarizedArticle {
	results, errs := batch.Run(ctx, items,
		batch.Options{ChunkSize: ChunkSize, Delay: ChunkDelay},
		func(item core.RawItem) string { return item.URL },
		func(ctx context.Context, item core.RawItem) (*core.SummarizedArticle, error) {
			return s.summarizeItem(ctx, item)
		})

	for _, msg := range errs {
		logger.Warn("Summarization skip", "reason", msg)
	}

	var summarized []core.SummarizedArticle
	for _, item := range items {
		article, ok := results[item.URL]
		if !ok || article == nil {
			continue
		}
		summarized = append(summarized, *article)
	}

	logger.Info("Summarization complete", "in", len(items), "out", len(summarized), "skipped", len(items)-len(summarized))
	return summarized
}

// summarizeItem runs one completion call. A nil article with nil error means
// the model flagged the item as off-topic (a silent drop, not a failure).
func (s *Stage) summarizeItem(ctx context.Context, item core.RawItem) (*core.SummarizedArticle, error) {
	content := sources.StripHTML(item.Content)
	if content == "" {
		content = item.Title
	}
	if len(content) > ContentCharLimit {
		content = content[:ContentCharLimit]
	}

	userPrompt := fmt.Sprintf("Title: %s\nSource: %s\nContent: %s", item.Title, item.Source.Name, content)

	raw, err := s.llm.CompleteJSON(ctx, llm.SummarizeArticlePrompt, userPrompt, llm.Options{MaxTokens: 2048})
	if err != nil {
		return nil, fmt.Errorf("summarization failed for %q: %w", item.Title, err)
	}

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("malformed summarization response for %q: %w", item.Title, err)
	}

	if resp.IsAIRelated != nil && !*resp.IsAIRelated {
		logger.Debug("Dropping off-topic item", "title", item.Title)
		return nil, nil
	}

	return &core.SummarizedArticle{
		Title:             item.Title,
		URL:               item.URL,
		SourceName:        item.Source.Name,
		SourceURL:         item.Source.URL,
		Published:         item.Published,
		RawContent:        item.Content,
		Summary:           resp.Summary,
		KeyTakeaway:       resp.KeyTakeaway,
		ImportanceScore:   clampImportance(resp.ImportanceScore),
		Tags:              capTags(resp.Tags),
		Category:          normalizeCategory(resp.Category),
		MentionedEntities: resp.MentionedEntities,
	}, nil
}

// clampImportance forces a score into [1,10]; a missing score defaults to the
// neutral midpoint.
func clampImportance(score *int) int {
	if score == nil {
		return 5
	}
	if *score < 1 {
		return 1
	}
	if *score > 10 {
		return 10
	}
	return *score
}

// capTags keeps at most MaxTags tags.
func capTags(tags []string) []string {
	if len(tags) > MaxTags {
		return tags[:MaxTags]
	}
	return tags
}

// normalizeCategory maps unknown or missing categories to the industry bucket.
func normalizeCategory(category string) core.ArticleCategory {
	c := core.ArticleCategory(category)
	if core.ValidCategory(c) {
		return c
	}
	return core.CategoryIndustry
}
