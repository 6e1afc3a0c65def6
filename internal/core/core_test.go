package core

import (
	"testing"
	"time"
)

func TestValidCategory(t *testing.T) {
	for _, c := range ArticleCategories {
		if !ValidCategory(c) {
			t.Errorf("Expected %q to be a valid category", c)
		}
	}

	if ValidCategory("sports") {
		t.Error("Expected 'sports' to be invalid")
	}
	if ValidCategory("") {
		t.Error("Expected empty category to be invalid")
	}
}

func TestValidEntityType(t *testing.T) {
	for _, et := range EntityTypes {
		if !ValidEntityType(et) {
			t.Errorf("Expected %q to be a valid entity type", et)
		}
	}

	if ValidEntityType("place") {
		t.Error("Expected 'place' to be invalid")
	}
}

func TestISODate(t *testing.T) {
	ts := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	if got := ISODate(ts); got != "2025-03-14" {
		t.Errorf("Expected '2025-03-14', got %s", got)
	}

	// Non-UTC times are normalized to UTC before formatting
	loc := time.FixedZone("UTC+9", 9*3600)
	ts = time.Date(2025, 3, 15, 1, 0, 0, 0, loc)
	if got := ISODate(ts); got != "2025-03-14" {
		t.Errorf("Expected '2025-03-14' after UTC conversion, got %s", got)
	}
}

func TestRawItemCreation(t *testing.T) {
	now := time.Now()
	item := RawItem{
		Title:     "Test Item",
		URL:       "https://example.com/article",
		Content:   "Some body text",
		Published: now,
		Source: SourceConfig{
			Name:     "Example Feed",
			URL:      "https://example.com/rss",
			Type:     SourceRSS,
			Category: CategoryIndustry,
			Enabled:  true,
		},
	}

	if item.Title != "Test Item" {
		t.Errorf("Expected Title to be 'Test Item', got %s", item.Title)
	}
	if item.Source.Type != SourceRSS {
		t.Errorf("Expected Source.Type to be 'rss', got %s", item.Source.Type)
	}
	if item.Published.IsZero() {
		t.Error("Expected Published to be set")
	}
}

func TestKnowledgeEntityCreation(t *testing.T) {
	now := time.Now().UTC()
	entity := KnowledgeEntity{
		ID:               "entity-1",
		Type:             EntityOrg,
		Name:             "Example Labs",
		Slug:             "example-labs",
		Description:      "A research lab",
		Metadata:         map[string]any{"country": "US"},
		FirstSeen:        now,
		LastMentioned:    now,
		MentionCount:     1,
		SourceArticleIDs: []string{"article-1"},
		TrendingScore:    1.0,
	}

	if entity.Slug != "example-labs" {
		t.Errorf("Expected Slug to be 'example-labs', got %s", entity.Slug)
	}
	if entity.MentionCount != 1 {
		t.Errorf("Expected MentionCount to be 1, got %d", entity.MentionCount)
	}
	if entity.EnrichedAt != nil {
		t.Error("Expected EnrichedAt to be nil for a fresh entity")
	}
	if len(entity.SourceArticleIDs) != 1 {
		t.Errorf("Expected 1 source article, got %d", len(entity.SourceArticleIDs))
	}
}
