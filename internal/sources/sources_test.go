package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pulse/internal/core"
)

const rssBody = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>First story</title>
      <link>https://example.com/first</link>
      <description>Body of the first story</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>No link story</title>
      <description>dropped</description>
    </item>
  </channel>
</rss>`

const atomBody = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>arXiv feed</title>
  <entry>
    <title>A paper
 about things</title>
    <link rel="alternate" href="https://arxiv.org/abs/1234.5678"/>
    <summary>  Abstract text  </summary>
    <published>2025-01-15T10:00:00Z</published>
  </entry>
</feed>`

func TestParseFeed_RSS(t *testing.T) {
	src := core.SourceConfig{Name: "rss-src", Type: core.SourceRSS}
	items, err := ParseFeed([]byte(rssBody), src)
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item (linkless one dropped), got %d", len(items))
	}
	if items[0].Title != "First story" {
		t.Errorf("Expected title 'First story', got %q", items[0].Title)
	}
	if items[0].URL != "https://example.com/first" {
		t.Errorf("Unexpected URL %q", items[0].URL)
	}
	if items[0].Published.IsZero() {
		t.Error("Expected pubDate to parse")
	}
	if items[0].Source.Name != "rss-src" {
		t.Errorf("Expected source carried through, got %q", items[0].Source.Name)
	}
}

func TestParseFeed_Atom(t *testing.T) {
	src := core.SourceConfig{Name: "arxiv", Type: core.SourceArXiv}
	items, err := ParseFeed([]byte(atomBody), src)
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Title != "A paper  about things" {
		t.Errorf("Expected newline-flattened title, got %q", items[0].Title)
	}
	if items[0].Content != "Abstract text" {
		t.Errorf("Expected trimmed summary, got %q", items[0].Content)
	}
	if items[0].Published.Year() != 2025 {
		t.Errorf("Expected published date to parse, got %v", items[0].Published)
	}
}

func TestParseFeed_Garbage(t *testing.T) {
	if _, err := ParseFeed([]byte("not xml at all"), core.SourceConfig{}); err == nil {
		t.Error("Expected error for unparseable body")
	}
}

func TestFetch_HackerNews(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":[
			{"title":"HN story","url":"https://example.com/hn","objectID":"1","created_at":"2025-02-01T12:00:00Z"},
			{"title":"Ask HN: something","url":"","objectID":"42","story_text":"self post text","created_at":"2025-02-01T13:00:00Z"}
		]}`))
	}))
	defer server.Close()

	g := NewGateway(Options{})
	src := core.SourceConfig{Name: "hn", URL: server.URL, Type: core.SourceHackerNews, Enabled: true}

	items, err := g.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[1].URL != "https://news.ycombinator.com/item?id=42" {
		t.Errorf("Expected HN permalink fallback, got %q", items[1].URL)
	}
	if items[1].Content != "self post text" {
		t.Errorf("Expected story text carried as content, got %q", items[1].Content)
	}
}

func TestFetch_Reddit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"data":{"title":"External link","url":"https://example.com/ext","created_utc":1738400000}},
			{"data":{"title":"Self post","url":"https://www.reddit.com/r/ml/comments/abc/","permalink":"/r/ml/comments/abc/","selftext":"discussion"}}
		]}}`))
	}))
	defer server.Close()

	g := NewGateway(Options{})
	src := core.SourceConfig{Name: "reddit", URL: server.URL, Type: core.SourceReddit, Enabled: true}

	items, err := g.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Published.IsZero() {
		t.Error("Expected created_utc to produce a published time")
	}
	if items[1].URL != "https://www.reddit.com/r/ml/comments/abc/" {
		t.Errorf("Expected permalink URL for self post, got %q", items[1].URL)
	}
}

func TestFetch_UnknownType(t *testing.T) {
	g := NewGateway(Options{})
	_, err := g.Fetch(context.Background(), core.SourceConfig{Name: "x", Type: "carrier-pigeon"})
	if err == nil {
		t.Error("Expected error for unknown source type")
	}
}

func TestFetch_WebTypeReturnsNothing(t *testing.T) {
	g := NewGateway(Options{})
	items, err := g.Fetch(context.Background(), core.SourceConfig{Name: "w", Type: core.SourceWeb})
	if err != nil {
		t.Errorf("Web sources should be a silent no-op, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items from web source, got %d", len(items))
	}
}

func TestFetchAll_PerSourceIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssBody))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	g := NewGateway(Options{})
	configured := []core.SourceConfig{
		{Name: "good", URL: good.URL, Type: core.SourceRSS, Enabled: true},
		{Name: "bad", URL: bad.URL, Type: core.SourceRSS, Enabled: true},
		{Name: "disabled", URL: bad.URL, Type: core.SourceRSS, Enabled: false},
		{Name: "flaky", URL: bad.URL, Type: core.SourceRSS, Enabled: true, ConsecutiveErrors: MaxConsecutiveErrors},
	}

	items, err := g.FetchAll(context.Background(), configured)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item from the healthy source only, got %d", len(items))
	}
}

func TestFetchAll_TimeoutCancelsSlowSources(t *testing.T) {
	var stillRunning int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			// Cancellation propagated: the handler sees the client go away.
		case <-time.After(2 * time.Second):
			atomic.AddInt32(&stillRunning, 1)
		}
	}))
	defer slow.Close()

	g := NewGateway(Options{Timeout: 50 * time.Millisecond})
	configured := []core.SourceConfig{
		{Name: "slow", URL: slow.URL, Type: core.SourceRSS, Enabled: true},
	}

	start := time.Now()
	items, err := g.FetchAll(context.Background(), configured)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items from the timed-out source, got %d", len(items))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("FetchAll should return promptly on timeout, took %v", elapsed)
	}
}

func TestFetchAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGateway(Options{})
	if _, err := g.FetchAll(ctx, nil); err == nil {
		t.Error("Expected error when context is already cancelled")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain text", input: "just text", expected: "just text"},
		{name: "tags removed", input: "<p>Hello <b>world</b></p>", expected: "Hello world"},
		{name: "whitespace collapsed", input: "<div>a\n\n  b</div>", expected: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
