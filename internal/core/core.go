// Package core defines the domain types shared across the ingestion pipeline.
package core

import "time"

// ArticleCategory classifies an article by the kind of story it tells.
type ArticleCategory string

const (
	CategoryResearch ArticleCategory = "research"
	CategoryIndustry ArticleCategory = "industry"
	CategoryProduct  ArticleCategory = "product"
	CategoryPolicy   ArticleCategory = "policy"
	CategoryTutorial ArticleCategory = "tutorial"
	CategoryOpinion  ArticleCategory = "opinion"
)

// ArticleCategories lists every valid category.
var ArticleCategories = []ArticleCategory{
	CategoryResearch,
	CategoryIndustry,
	CategoryProduct,
	CategoryPolicy,
	CategoryTutorial,
	CategoryOpinion,
}

// ValidCategory reports whether c is a known article category.
func ValidCategory(c ArticleCategory) bool {
	for _, known := range ArticleCategories {
		if c == known {
			return true
		}
	}
	return false
}

// EntityType classifies a knowledge base entity.
type EntityType string

const (
	EntityPerson    EntityType = "person"
	EntityOrg       EntityType = "org"
	EntityConcept   EntityType = "concept"
	EntityModel     EntityType = "model"
	EntityMilestone EntityType = "milestone"
)

// EntityTypes lists every valid entity type.
var EntityTypes = []EntityType{
	EntityPerson,
	EntityOrg,
	EntityConcept,
	EntityModel,
	EntityMilestone,
}

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SourceType identifies the wire format of a feed source.
type SourceType string

const (
	SourceRSS        SourceType = "rss"
	SourceArXiv      SourceType = "arxiv"
	SourceHackerNews SourceType = "hackernews"
	SourceReddit     SourceType = "reddit"
	SourceWeb        SourceType = "web"
)

// SourceConfig describes a configured feed source.
type SourceConfig struct {
	Name              string          `mapstructure:"name" json:"name"`                             // Human-readable source name
	URL               string          `mapstructure:"url" json:"url"`                               // Feed or API endpoint URL
	Type              SourceType      `mapstructure:"type" json:"type"`                             // Wire format (rss, arxiv, hackernews, reddit, web)
	Category          ArticleCategory `mapstructure:"category" json:"category"`                     // Default category hint for items from this source
	Enabled           bool            `mapstructure:"enabled" json:"enabled"`                       // Whether the source participates in runs
	ConsecutiveErrors int             `mapstructure:"consecutive_errors" json:"consecutive_errors"` // Consecutive fetch failures; sources past the limit are skipped
}

// RawItem is a single item fetched from a feed source. It is ephemeral and
// never persisted directly.
type RawItem struct {
	Title     string       `json:"title"`     // Item title
	URL       string       `json:"url"`       // Item URL
	Content   string       `json:"content"`   // Optional body text (may contain HTML)
	Published time.Time    `json:"published"` // Publication time; zero value means unknown
	Source    SourceConfig `json:"source"`    // Source the item came from
}

// SummarizedArticle is the immutable output of the summarization stage.
type SummarizedArticle struct {
	Title             string          `json:"title"`
	URL               string          `json:"url"`
	SourceName        string          `json:"source_name"`
	SourceURL         string          `json:"source_url"`
	Published         time.Time       `json:"published_at"`       // Zero value means unknown
	RawContent        string          `json:"raw_content"`        // Original body text, if any
	Summary           string          `json:"summary"`            // Generated summary
	KeyTakeaway       string          `json:"key_takeaway"`       // One-sentence takeaway
	ImportanceScore   int             `json:"importance_score"`   // Clamped to [1,10]
	Tags              []string        `json:"tags"`               // Up to 5 tags
	Category          ArticleCategory `json:"category"`           // Assigned category
	MentionedEntities []string        `json:"mentioned_entities"` // Entity names the summary mentions
}

// Article is a persisted article row. Identity is assigned by the store on
// insert; URL is the natural unique key.
type Article struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	URL               string          `json:"url"`
	SourceName        string          `json:"source_name"`
	SourceURL         string          `json:"source_url"`
	Published         time.Time       `json:"published_at"`
	FetchedAt         time.Time       `json:"fetched_at"`
	Category          ArticleCategory `json:"category"`
	RawContent        string          `json:"raw_content"`
	Summary           string          `json:"summary"`
	KeyTakeaway       string          `json:"key_takeaway"`
	ImportanceScore   int             `json:"importance_score"`
	Tags              []string        `json:"tags"`
	MentionedEntities []string        `json:"mentioned_entities"`
	Embedding         []float64       `json:"embedding"`          // Nil when embedding generation failed
	DigestDate        string          `json:"digest_date"`        // ISO date (YYYY-MM-DD) of the run that stored it
	EntitiesExtracted bool            `json:"entities_extracted"` // False until entity resolution has covered this article
}

// ExtractedEntity is a single entity the LLM found in an article.
type ExtractedEntity struct {
	Name        string         `json:"name"`
	Type        EntityType     `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// KnowledgeEntity is a knowledge base entry. Slug is the unique key. Entities
// are created on first mention and merged on every subsequent matching
// mention; the pipeline never deletes them.
type KnowledgeEntity struct {
	ID               string         `json:"id"`
	Type             EntityType     `json:"type"`
	Name             string         `json:"name"`
	Slug             string         `json:"slug"`
	Description      string         `json:"description"`
	Metadata         map[string]any `json:"metadata"`
	FirstSeen        time.Time      `json:"first_seen"`
	LastMentioned    time.Time      `json:"last_mentioned"`
	MentionCount     int            `json:"mention_count"`      // Monotonically non-decreasing
	SourceArticleIDs []string       `json:"source_article_ids"` // Articles that mentioned this entity
	Embedding        []float64      `json:"embedding"`          // Nil until enriched
	TrendingScore    float64        `json:"trending_score"`     // Always recomputed from mentions + recency
	EnrichedAt       *time.Time     `json:"enriched_at"`        // Nil until weekly enrichment touches it
}

// EntityMatch pairs a stored entity with its name similarity to a query.
type EntityMatch struct {
	Entity     KnowledgeEntity `json:"entity"`
	Similarity float64         `json:"similarity"` // In [0,1], higher is closer
}

// Digest is the per-run record keyed by date.
type Digest struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"` // ISO date, unique key
	GeneratedAt    time.Time `json:"generated_at"`
	ArticleCount   int       `json:"article_count"`
	TopStoryID     string    `json:"top_story_id"` // Empty when no top story was stored
	EditorialIntro string    `json:"editorial_intro"`
	WeeklySummary  string    `json:"weekly_summary"`
	BacklogCount   int       `json:"backlog_count"`
}

// PipelineResult reports the outcome of one daily run. It is a report object,
// not persisted state.
type PipelineResult struct {
	Message           string        `json:"message,omitempty"` // Set when a run ends early without error
	ArticlesProcessed int           `json:"articles_processed"`
	ArticlesStored    int           `json:"articles_stored"`
	EntitiesExtracted int           `json:"entities_extracted"`
	BacklogCount      int           `json:"backlog_count"`
	Errors            []string      `json:"errors"`
	Duration          time.Duration `json:"duration"`
}

// WeeklyResult reports the outcome of the weekly enrichment run.
type WeeklyResult struct {
	Summary          string   `json:"summary"`
	EntitiesEnriched int      `json:"entities_enriched"`
	Errors           []string `json:"errors"`
}

// EntityBatchResult reports one catch-up pass over articles still waiting for
// entity resolution.
type EntityBatchResult struct {
	Processed         int `json:"processed"`
	Remaining         int `json:"remaining"`
	EntitiesExtracted int `json:"entities_extracted"`
}

// ISODate formats t as the YYYY-MM-DD digest key.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
