package summarize

import (
	"context"
	"fmt"
	"testing"

	"pulse/internal/core"
	"pulse/internal/llm"
)

// fakeCompleter returns canned responses keyed by a substring of the prompt.
type fakeCompleter struct {
	responses map[string]string
	err       error
	calls     int
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, userPrompt string, _ llm.Options) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	for key, resp := range f.responses {
		if key == "" || contains(userPrompt, key) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no canned response for prompt")
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func item(title string) core.RawItem {
	return core.RawItem{
		Title:  title,
		URL:    "https://example.com/" + title,
		Source: core.SourceConfig{Name: "src", URL: "https://example.com"},
	}
}

func TestSummarizeBatch_Success(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"": `{"is_ai_related":true,"summary":"sum","key_takeaway":"takeaway","importance_score":7,"category":"research","tags":["a","b"],"mentioned_entities":["OpenAI"]}`,
	}}
	stage := NewStage(completer)

	articles := stage.SummarizeBatch(context.Background(), []core.RawItem{item("one")})
	if len(articles) != 1 {
		t.Fatalf("Expected 1 article, got %d", len(articles))
	}

	a := articles[0]
	if a.Summary != "sum" || a.KeyTakeaway != "takeaway" {
		t.Errorf("Summary fields not carried: %+v", a)
	}
	if a.ImportanceScore != 7 {
		t.Errorf("Expected importance 7, got %d", a.ImportanceScore)
	}
	if a.Category != core.CategoryResearch {
		t.Errorf("Expected research category, got %s", a.Category)
	}
	if len(a.MentionedEntities) != 1 || a.MentionedEntities[0] != "OpenAI" {
		t.Errorf("Expected mentioned entities carried, got %v", a.MentionedEntities)
	}
}

func TestSummarizeBatch_OffTopicDropped(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"": `{"is_ai_related":false,"summary":"irrelevant"}`,
	}}
	stage := NewStage(completer)

	articles := stage.SummarizeBatch(context.Background(), []core.RawItem{item("one")})
	if len(articles) != 0 {
		t.Errorf("Expected off-topic item to be dropped, got %d articles", len(articles))
	}
}

func TestSummarizeBatch_FailureIsSkip(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("service unavailable")}
	stage := NewStage(completer)

	articles := stage.SummarizeBatch(context.Background(), []core.RawItem{item("one"), item("two")})
	if len(articles) != 0 {
		t.Errorf("Expected failures to produce no articles, got %d", len(articles))
	}
}

func TestSummarizeBatch_MalformedJSONIsSkip(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{"": "not json {{"}}
	stage := NewStage(completer)

	articles := stage.SummarizeBatch(context.Background(), []core.RawItem{item("one")})
	if len(articles) != 0 {
		t.Errorf("Expected malformed response to be skipped, got %d articles", len(articles))
	}
}

func TestSummarizeBatch_DefaultsForMissingFields(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"": `{"is_ai_related":true}`,
	}}
	stage := NewStage(completer)

	articles := stage.SummarizeBatch(context.Background(), []core.RawItem{item("one")})
	if len(articles) != 1 {
		t.Fatalf("Expected 1 article, got %d", len(articles))
	}
	a := articles[0]
	if a.ImportanceScore != 5 {
		t.Errorf("Expected neutral default importance 5, got %d", a.ImportanceScore)
	}
	if a.Category != core.CategoryIndustry {
		t.Errorf("Expected default industry category, got %s", a.Category)
	}
	if a.Summary != "" || len(a.Tags) != 0 {
		t.Errorf("Expected empty defaults, got %+v", a)
	}
}

func TestClampImportance(t *testing.T) {
	tests := []struct {
		input    *int
		expected int
	}{
		{input: intPtr(15), expected: 10},
		{input: intPtr(-2), expected: 1},
		{input: intPtr(10), expected: 10},
		{input: intPtr(1), expected: 1},
		{input: intPtr(6), expected: 6},
		{input: nil, expected: 5},
	}

	for _, tt := range tests {
		if got := clampImportance(tt.input); got != tt.expected {
			t.Errorf("clampImportance(%v) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func intPtr(v int) *int { return &v }

func TestCapTags(t *testing.T) {
	tags := []string{"a", "b", "c", "d", "e", "f", "g"}
	if got := capTags(tags); len(got) != MaxTags {
		t.Errorf("Expected %d tags, got %d", MaxTags, len(got))
	}
	if got := capTags([]string{"a"}); len(got) != 1 {
		t.Errorf("Expected short tag lists untouched, got %d", len(got))
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := normalizeCategory("policy"); got != core.CategoryPolicy {
		t.Errorf("Expected policy, got %s", got)
	}
	if got := normalizeCategory("astrology"); got != core.CategoryIndustry {
		t.Errorf("Expected unknown category to default to industry, got %s", got)
	}
	if got := normalizeCategory(""); got != core.CategoryIndustry {
		t.Errorf("Expected empty category to default to industry, got %s", got)
	}
}
