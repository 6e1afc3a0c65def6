// Package pipeline sequences feed ingestion, summarization, embedding,
// persistence, and entity resolution into one daily run, plus the weekly
// enrichment and entity catch-up operations.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pulse/internal/core"
	"pulse/internal/dedup"
	"pulse/internal/llm"
	"pulse/internal/logger"
)

const (
	// MaxArticlesPerRun caps how many new items one run summarizes; the rest
	// become backlog and surface in the next run.
	MaxArticlesPerRun = 30
	// InsertBatchSize bounds one article insert statement batch.
	InsertBatchSize = 20
	// ImportanceThreshold gates which stored articles get entity resolution.
	ImportanceThreshold = 6
	// MaxEntityArticles caps entity resolution per run.
	MaxEntityArticles = 10
	// TopStoriesForIntro is how many top articles feed the editorial intro.
	TopStoriesForIntro = 5
	// WeeklyArticleLimit bounds the trailing-week article set for the weekly
	// narrative.
	WeeklyArticleLimit = 50
	// WeeklyEntityLimit bounds how many top entities the weekly run enriches.
	WeeklyEntityLimit = 20
)

// Gateway fetches raw items from all configured sources.
type Gateway interface {
	FetchAll(ctx context.Context, sources []core.SourceConfig) ([]core.RawItem, error)
}

// Summarizer turns raw items into summarized articles, dropping failures.
type Summarizer interface {
	SummarizeBatch(ctx context.Context, items []core.RawItem) []core.SummarizedArticle
}

// Embedder attaches embeddings to articles, leaving failures nil.
type Embedder interface {
	EmbedBatch(ctx context.Context, articles []core.Article) []core.Article
}

// Resolver extracts and resolves entities and enriches stored ones.
type Resolver interface {
	Extract(ctx context.Context, article core.Article) []core.ExtractedEntity
	ResolveAll(ctx context.Context, articleID string, entities []core.ExtractedEntity, now time.Time) (created, merged int)
	Enrich(ctx context.Context, entity core.KnowledgeEntity, mentions []core.Article, now time.Time) error
}

// Completer is the plain-text LLM surface used for intros and narratives.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
}

// ArticleStore is the article persistence surface the orchestrator needs.
type ArticleStore interface {
	UpsertBatch(ctx context.Context, articles []core.Article) ([]core.Article, error)
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	GetByIDs(ctx context.Context, ids []string) ([]core.Article, error)
	GetSince(ctx context.Context, since time.Time, limit int) ([]core.Article, error)
	MarkEntitiesExtracted(ctx context.Context, ids []string) error
	GetPendingEntityExtraction(ctx context.Context, minImportance, limit int) ([]core.Article, error)
	CountPendingEntityExtraction(ctx context.Context, minImportance int) (int, error)
}

// EntityStore is the entity persistence surface the orchestrator needs.
type EntityStore interface {
	TopByMentions(ctx context.Context, limit int) ([]core.KnowledgeEntity, error)
}

// DigestStore is the digest persistence surface the orchestrator needs.
type DigestStore interface {
	UpsertByDate(ctx context.Context, digest core.Digest) (core.Digest, error)
	GetLatest(ctx context.Context) (*core.Digest, error)
	SetWeeklySummary(ctx context.Context, id string, summary string) error
}

// Orchestrator runs the pipeline. All collaborators are injected.
type Orchestrator struct {
	gateway    Gateway
	summarizer Summarizer
	embedder   Embedder
	resolver   Resolver
	llm        Completer
	articles   ArticleStore
	entities   EntityStore
	digests    DigestStore
	sources    []core.SourceConfig
	now        func() time.Time
}

// Options bundles the orchestrator's collaborators.
type Options struct {
	Gateway    Gateway
	Summarizer Summarizer
	Embedder   Embedder
	Resolver   Resolver
	LLM        Completer
	Articles   ArticleStore
	Entities   EntityStore
	Digests    DigestStore
	Sources    []core.SourceConfig
	Now        func() time.Time
}

func NewOrchestrator(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		gateway:    opts.Gateway,
		summarizer: opts.Summarizer,
		embedder:   opts.Embedder,
		resolver:   opts.Resolver,
		llm:        opts.LLM,
		articles:   opts.Articles,
		entities:   opts.Entities,
		digests:    opts.Digests,
		sources:    opts.Sources,
		now:        now,
	}
}

// Run executes one full daily pipeline pass. It never returns an error:
// partial failures accumulate in the result's Errors list, and a fetch-stage
// failure produces a zero-count result before any writes happen.
func (o *Orchestrator) Run(ctx context.Context) core.PipelineResult {
	start := o.now()
	result := core.PipelineResult{}

	items, err := o.gateway.FetchAll(ctx, o.sources)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("feed fetch failed: %v", err))
		result.Duration = o.now().Sub(start)
		return result
	}
	if len(items) == 0 {
		result.Message = "no items returned by any source"
		result.Duration = o.now().Sub(start)
		return result
	}
	logger.Info("Fetched items", "count", len(items))

	deduped := dedup.Deduplicate(items)

	newItems, err := o.filterExisting(ctx, deduped)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("existing-url check failed: %v", err))
		result.Duration = o.now().Sub(start)
		return result
	}
	if len(newItems) == 0 {
		result.Message = "no new articles after deduplication"
		result.Duration = o.now().Sub(start)
		return result
	}

	// Most recent first; unknown publish dates sort oldest.
	sort.SliceStable(newItems, func(i, j int) bool {
		return newItems[i].Published.After(newItems[j].Published)
	})
	capped := newItems
	if len(capped) > MaxArticlesPerRun {
		capped = capped[:MaxArticlesPerRun]
	}
	result.BacklogCount = len(newItems) - len(capped)
	logger.Info("Capped new items", "new", len(newItems), "processing", len(capped), "backlog", result.BacklogCount)

	summarized := o.summarizer.SummarizeBatch(ctx, capped)
	result.ArticlesProcessed = len(summarized)
	sort.SliceStable(summarized, func(i, j int) bool {
		return summarized[i].ImportanceScore > summarized[j].ImportanceScore
	})

	articles := o.toArticles(summarized, start)
	articles = o.embedder.EmbedBatch(ctx, articles)

	inserted := o.insertBatches(ctx, articles, &result)
	result.ArticlesStored = len(inserted)

	result.EntitiesExtracted = o.resolveEntities(ctx, inserted)

	intro := o.editorialIntro(ctx, summarized, &result)

	digest := core.Digest{
		Date:           core.ISODate(start),
		GeneratedAt:    start,
		ArticleCount:   len(inserted),
		EditorialIntro: intro,
		BacklogCount:   result.BacklogCount,
	}
	if len(inserted) > 0 {
		digest.TopStoryID = inserted[0].ID
	}
	if _, err := o.digests.UpsertByDate(ctx, digest); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("digest upsert failed: %v", err))
	}

	result.Duration = o.now().Sub(start)
	return result
}

// filterExisting drops items whose canonical URL is already stored and
// rewrites survivors to their canonical URL so the store key is stable.
func (o *Orchestrator) filterExisting(ctx context.Context, items []core.RawItem) ([]core.RawItem, error) {
	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = dedup.CanonicalURL(item.URL)
	}

	existing, err := o.articles.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, err
	}

	var fresh []core.RawItem
	for i, item := range items {
		if existing[urls[i]] {
			continue
		}
		item.URL = urls[i]
		fresh = append(fresh, item)
	}
	return fresh, nil
}

func (o *Orchestrator) toArticles(summarized []core.SummarizedArticle, runTime time.Time) []core.Article {
	articles := make([]core.Article, 0, len(summarized))
	for _, s := range summarized {
		articles = append(articles, core.Article{
			Title:             s.Title,
			URL:               s.URL,
			SourceName:        s.SourceName,
			SourceURL:         s.SourceURL,
			Published:         s.Published,
			FetchedAt:         runTime,
			Category:          s.Category,
			RawContent:        s.RawContent,
			Summary:           s.Summary,
			KeyTakeaway:       s.KeyTakeaway,
			ImportanceScore:   s.ImportanceScore,
			Tags:              s.Tags,
			MentionedEntities: s.MentionedEntities,
			DigestDate:        core.ISODate(runTime),
		})
	}
	return articles
}

// insertBatches upserts articles in fixed-size batches. A failed batch is
// recorded in the error list and skipped; the rest keep going.
func (o *Orchestrator) insertBatches(ctx context.Context, articles []core.Article, result *core.PipelineResult) []core.Article {
	var inserted []core.Article
	for start := 0; start < len(articles); start += InsertBatchSize {
		end := start + InsertBatchSize
		if end > len(articles) {
			end = len(articles)
		}

		batch, err := o.articles.UpsertBatch(ctx, articles[start:end])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("insert batch %d failed: %v", start/InsertBatchSize+1, err))
			continue
		}
		inserted = append(inserted, batch...)
	}
	return inserted
}

// resolveEntities runs entity resolution over the most important stored
// articles and marks them extracted. Returns how many entities were touched.
func (o *Orchestrator) resolveEntities(ctx context.Context, inserted []core.Article) int {
	var candidates []core.Article
	for _, a := range inserted {
		if a.ImportanceScore >= ImportanceThreshold {
			candidates = append(candidates, a)
		}
		if len(candidates) == MaxEntityArticles {
			break
		}
	}

	now := o.now()
	total := 0
	var processedIDs []string
	for _, article := range candidates {
		entities := o.resolver.Extract(ctx, article)
		created, merged := o.resolver.ResolveAll(ctx, article.ID, entities, now)
		total += created + merged
		processedIDs = append(processedIDs, article.ID)
	}

	if err := o.articles.MarkEntitiesExtracted(ctx, processedIDs); err != nil {
		logger.Warn("Failed to mark articles extracted", "error", err.Error())
	}
	return total
}

// editorialIntro asks the LLM for a short introduction based on the top
// stories. Best effort; failure lands in the error list and the digest is
// written without an intro.
func (o *Orchestrator) editorialIntro(ctx context.Context, summarized []core.SummarizedArticle, result *core.PipelineResult) string {
	if len(summarized) == 0 {
		return ""
	}

	top := summarized
	if len(top) > TopStoriesForIntro {
		top = top[:TopStoriesForIntro]
	}

	var b strings.Builder
	b.WriteString("Today's top stories:\n")
	for _, s := range top {
		fmt.Fprintf(&b, "- %s (%s, importance %d): %s\n", s.Title, s.Category, s.ImportanceScore, s.KeyTakeaway)
	}

	intro, err := o.llm.Complete(ctx, llm.DigestIntroPrompt, b.String(), llm.Options{MaxTokens: 512})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("editorial intro failed: %v", err))
		return ""
	}
	return strings.TrimSpace(intro)
}

// RunWeekly rolls the trailing week of articles into a narrative, attaches it
// to the latest digest, and enriches the most-mentioned entities. Per-entity
// failures are logged and skipped; the operation always returns a result.
func (o *Orchestrator) RunWeekly(ctx context.Context) core.WeeklyResult {
	result := core.WeeklyResult{}
	now := o.now()

	articles, err := o.articles.GetSince(ctx, now.AddDate(0, 0, -7), WeeklyArticleLimit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("weekly article load failed: %v", err))
		return result
	}

	if len(articles) > 0 {
		result.Summary = o.weeklyNarrative(ctx, articles, &result)
	}

	if result.Summary != "" {
		latest, err := o.digests.GetLatest(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("latest digest lookup failed: %v", err))
		} else if err := o.digests.SetWeeklySummary(ctx, latest.ID, result.Summary); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("weekly summary save failed: %v", err))
		}
	}

	entities, err := o.entities.TopByMentions(ctx, WeeklyEntityLimit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("top entity load failed: %v", err))
		return result
	}

	for _, entity := range entities {
		mentions, err := o.articles.GetByIDs(ctx, entity.SourceArticleIDs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("mention load for %s failed: %v", entity.Name, err))
			continue
		}
		if err := o.resolver.Enrich(ctx, entity, mentions, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("enrichment of %s failed: %v", entity.Name, err))
			continue
		}
		result.EntitiesEnriched++
	}

	return result
}

func (o *Orchestrator) weeklyNarrative(ctx context.Context, articles []core.Article, result *core.WeeklyResult) string {
	var b strings.Builder
	b.WriteString("This week's articles:\n")
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s (%s, importance %d): %s\n", a.Title, a.Category, a.ImportanceScore, a.KeyTakeaway)
	}

	narrative, err := o.llm.Complete(ctx, llm.WeeklySummaryPrompt, b.String(), llm.Options{MaxTokens: 4096})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("weekly narrative failed: %v", err))
		return ""
	}
	return strings.TrimSpace(narrative)
}

// ProcessPendingEntities resolves entities for articles that earlier runs
// stored but never covered, oldest first.
func (o *Orchestrator) ProcessPendingEntities(ctx context.Context, batchSize int) (core.EntityBatchResult, error) {
	result := core.EntityBatchResult{}

	articles, err := o.articles.GetPendingEntityExtraction(ctx, ImportanceThreshold, batchSize)
	if err != nil {
		return result, fmt.Errorf("pending article load: %w", err)
	}

	now := o.now()
	var processedIDs []string
	for _, article := range articles {
		entities := o.resolver.Extract(ctx, article)
		created, merged := o.resolver.ResolveAll(ctx, article.ID, entities, now)
		result.EntitiesExtracted += created + merged
		processedIDs = append(processedIDs, article.ID)
	}
	result.Processed = len(articles)

	if err := o.articles.MarkEntitiesExtracted(ctx, processedIDs); err != nil {
		return result, fmt.Errorf("marking articles extracted: %w", err)
	}

	remaining, err := o.articles.CountPendingEntityExtraction(ctx, ImportanceThreshold)
	if err != nil {
		return result, fmt.Errorf("pending count: %w", err)
	}
	result.Remaining = remaining

	return result, nil
}

// PendingEntityCount reports how many stored articles still await entity
// resolution.
func (o *Orchestrator) PendingEntityCount(ctx context.Context) (int, error) {
	return o.articles.CountPendingEntityExtraction(ctx, ImportanceThreshold)
}
