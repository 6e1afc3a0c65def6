// Package knowledge maintains the entity knowledge base. It extracts named
// entities from articles and resolves each one against stored entities,
// merging close matches instead of creating near-duplicates.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"pulse/internal/core"
	"pulse/internal/llm"
	"pulse/internal/logger"
)

const (
	// MatchThreshold is the minimum name similarity for a stored entity to
	// count as a resolution candidate.
	MatchThreshold = 0.4
	// MergeThreshold is the similarity above which a candidate is treated as
	// the same entity and merged rather than duplicated.
	MergeThreshold = 0.9
	// TrendingWindowHours is the recency window for trending decay.
	TrendingWindowHours = 7 * 24
)

// Completer is the LLM surface the resolver needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
}

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EntityStore is the persistence surface the resolver needs.
type EntityStore interface {
	FindSimilar(ctx context.Context, name string, threshold float64) ([]core.EntityMatch, error)
	Create(ctx context.Context, entity core.KnowledgeEntity) (core.KnowledgeEntity, error)
	Update(ctx context.Context, entity core.KnowledgeEntity) error
}

// Resolver extracts entities from articles and folds them into the store.
type Resolver struct {
	llm      Completer
	embedder Embedder
	store    EntityStore
}

func NewResolver(completer Completer, embedder Embedder, store EntityStore) *Resolver {
	return &Resolver{llm: completer, embedder: embedder, store: store}
}

type extractResponse struct {
	Entities []core.ExtractedEntity `json:"entities"`
}

// Extract asks the LLM for the entities an article mentions. A failed or
// malformed call yields an empty list; the article can be retried by a
// later catch-up pass.
func (r *Resolver) Extract(ctx context.Context, article core.Article) []core.ExtractedEntity {
	userPrompt := fmt.Sprintf("Title: %s\nSource: %s\nSummary: %s", article.Title, article.SourceName, article.Summary)

	raw, err := r.llm.CompleteJSON(ctx, llm.ExtractEntitiesPrompt, userPrompt, llm.Options{MaxTokens: 2048})
	if err != nil {
		logger.Warn("Entity extraction failed", "url", article.URL, "error", err.Error())
		return nil
	}

	var resp extractResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &resp); err != nil {
		logger.Warn("Entity extraction returned malformed JSON", "url", article.URL, "error", err.Error())
		return nil
	}

	out := make([]core.ExtractedEntity, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		if !core.ValidEntityType(e.Type) {
			e.Type = core.EntityConcept
		}
		out = append(out, e)
	}
	return out
}

// ResolveAll resolves each extracted entity in order and reports how many
// were newly created versus merged into existing entities. Resolution is
// strictly sequential so that two mentions of the same new entity in one
// article merge instead of racing to create duplicates.
func (r *Resolver) ResolveAll(ctx context.Context, articleID string, entities []core.ExtractedEntity, now time.Time) (created, merged int) {
	for _, e := range entities {
		wasMerged, err := r.Resolve(ctx, articleID, e, now)
		if err != nil {
			logger.Warn("Entity resolution failed", "entity", e.Name, "error", err.Error())
			continue
		}
		if wasMerged {
			merged++
		} else {
			created++
		}
	}
	return created, merged
}

// Resolve folds one extracted entity into the store. It returns true when the
// mention merged into an existing entity and false when a new one was created.
func (r *Resolver) Resolve(ctx context.Context, articleID string, ext core.ExtractedEntity, now time.Time) (bool, error) {
	matches, err := r.store.FindSimilar(ctx, ext.Name, MatchThreshold)
	if err != nil {
		return false, fmt.Errorf("similarity lookup for %q: %w", ext.Name, err)
	}

	var best *core.EntityMatch
	for i := range matches {
		if best == nil || matches[i].Similarity > best.Similarity {
			best = &matches[i]
		}
	}

	if best != nil && best.Similarity >= MergeThreshold {
		if err := r.merge(ctx, best.Entity, articleID, ext, now); err != nil {
			return false, err
		}
		return true, nil
	}

	entity := core.KnowledgeEntity{
		Type:             ext.Type,
		Name:             ext.Name,
		Slug:             Slugify(ext.Name),
		Description:      ext.Description,
		Metadata:         ext.Metadata,
		FirstSeen:        now,
		LastMentioned:    now,
		MentionCount:     1,
		SourceArticleIDs: []string{articleID},
		TrendingScore:    TrendingScore(1, now, now),
	}
	if _, err := r.store.Create(ctx, entity); err != nil {
		return false, fmt.Errorf("create entity %q: %w", ext.Name, err)
	}
	return false, nil
}

func (r *Resolver) merge(ctx context.Context, existing core.KnowledgeEntity, articleID string, ext core.ExtractedEntity, now time.Time) error {
	description := existing.Description
	if description == "" {
		description = ext.Description
	} else if ext.Description != "" && ext.Description != existing.Description {
		userPrompt := fmt.Sprintf(llm.MergeEntityDescriptionPrompt, existing.Description, ext.Description)
		mergedDesc, err := r.llm.Complete(ctx, "", userPrompt, llm.Options{MaxTokens: 512})
		if err != nil {
			// Keep the existing description; the merge is best effort.
			logger.Warn("Description merge failed", "entity", existing.Name, "error", err.Error())
		} else if d := strings.TrimSpace(mergedDesc); d != "" {
			description = d
		}
	}

	existing.Description = description
	existing.MentionCount++
	existing.LastMentioned = now
	existing.TrendingScore = TrendingScore(existing.MentionCount, now, now)
	if !containsID(existing.SourceArticleIDs, articleID) {
		existing.SourceArticleIDs = append(existing.SourceArticleIDs, articleID)
	}
	if len(ext.Metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = map[string]any{}
		}
		for k, v := range ext.Metadata {
			existing.Metadata[k] = v
		}
	}

	if err := r.store.Update(ctx, existing); err != nil {
		return fmt.Errorf("update entity %q: %w", existing.Name, err)
	}
	return nil
}

// Enrich rewrites an entity's description from its mention history and
// attaches a fresh embedding. Called by the weekly run for top entities.
func (r *Resolver) Enrich(ctx context.Context, entity core.KnowledgeEntity, mentions []core.Article, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s (%s)\nCurrent description: %s\n\nMentioning articles:\n", entity.Name, entity.Type, entity.Description)
	for _, a := range mentions {
		fmt.Fprintf(&b, "- %s: %s\n", a.Title, a.KeyTakeaway)
	}

	description, err := r.llm.Complete(ctx, llm.EnrichEntityPrompt, b.String(), llm.Options{MaxTokens: 512})
	if err != nil {
		return fmt.Errorf("enrich %q: %w", entity.Name, err)
	}
	if d := strings.TrimSpace(description); d != "" {
		entity.Description = d
	}

	vec, err := r.embedder.Embed(ctx, entity.Name+". "+entity.Description)
	if err != nil {
		logger.Warn("Entity embedding failed", "entity", entity.Name, "error", err.Error())
	} else {
		entity.Embedding = vec
	}

	entity.TrendingScore = TrendingScore(entity.MentionCount, entity.LastMentioned, now)
	entity.EnrichedAt = &now

	if err := r.store.Update(ctx, entity); err != nil {
		return fmt.Errorf("update enriched entity %q: %w", entity.Name, err)
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TrendingScore weights mention volume by recency. An entity untouched for
// the whole window keeps a floor of a tenth of its mention count so heavily
// mentioned entities never vanish from rankings entirely.
func TrendingScore(mentionCount int, lastMentioned, now time.Time) float64 {
	hoursAgo := now.Sub(lastMentioned).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	recency := math.Max(0.1, 1-hoursAgo/TrendingWindowHours)
	return float64(mentionCount) * recency
}

// Slugify lowercases a name and replaces runs of non-alphanumeric characters
// with single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
