package embed

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pulse/internal/core"
)

type fakeEmbedder struct {
	failFor string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.failFor != "" && strings.Contains(text, f.failFor) {
		return nil, fmt.Errorf("embedding service unavailable")
	}
	return []float64{float64(len(text)), 0.5}, nil
}

func article(title, summary string) core.Article {
	return core.Article{
		Title:   title,
		URL:     "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Summary: summary,
	}
}

func TestEmbedBatch(t *testing.T) {
	stage := NewStage(&fakeEmbedder{})
	in := []core.Article{article("one", "first summary"), article("two", "second summary")}

	out := stage.EmbedBatch(context.Background(), in)
	if len(out) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(out))
	}
	for _, a := range out {
		if a.Embedding == nil {
			t.Errorf("Expected embedding for %q, got nil", a.Title)
		}
	}
}

func TestEmbedBatch_FailureKeepsArticle(t *testing.T) {
	stage := NewStage(&fakeEmbedder{failFor: "two"})
	in := []core.Article{article("one", "first"), article("two", "second")}

	out := stage.EmbedBatch(context.Background(), in)
	if len(out) != 2 {
		t.Fatalf("Expected both articles returned, got %d", len(out))
	}
	if out[0].Embedding == nil {
		t.Errorf("Expected embedding for %q", out[0].Title)
	}
	if out[1].Embedding != nil {
		t.Errorf("Expected nil embedding for failed article, got %v", out[1].Embedding)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	stage := NewStage(&fakeEmbedder{})
	in := []core.Article{article("c", "x"), article("a", "y"), article("b", "z")}

	out := stage.EmbedBatch(context.Background(), in)
	for i := range in {
		if out[i].URL != in[i].URL {
			t.Errorf("Order changed at %d: got %s, want %s", i, out[i].URL, in[i].URL)
		}
	}
}

func TestEmbeddingText(t *testing.T) {
	a := article("Title", "Summary text")
	if got := EmbeddingText(a); got != "Title. Summary text" {
		t.Errorf("Unexpected embedding text: %q", got)
	}
	a.Summary = ""
	if got := EmbeddingText(a); got != "Title" {
		t.Errorf("Expected bare title when summary empty, got %q", got)
	}
}
