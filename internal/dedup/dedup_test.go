package dedup

import (
	"testing"

	"pulse/internal/core"
)

func TestCanonicalURL_StripsTrackingParams(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "utm_source stripped, other params kept",
			input:    "https://x.com/a?utm_source=x&id=1",
			expected: "https://x.com/a?id=1",
		},
		{
			name:     "all tracking params stripped",
			input:    "https://example.com/post?utm_medium=email&fbclid=abc&gclid=def",
			expected: "https://example.com/post",
		},
		{
			name:     "query params sorted deterministically",
			input:    "https://example.com/a?z=1&a=2",
			expected: "https://example.com/a?a=2&z=1",
		},
		{
			name:     "host lowercased",
			input:    "https://Example.COM/Path",
			expected: "https://example.com/Path",
		},
		{
			name:     "trailing slash stripped",
			input:    "https://example.com/path/",
			expected: "https://example.com/path",
		},
		{
			name:     "fragment stripped",
			input:    "https://example.com/path#section",
			expected: "https://example.com/path",
		},
		{
			name:     "bare host keeps root path",
			input:    "https://example.com/",
			expected: "https://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.input); got != tt.expected {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalURL_EquivalentForms(t *testing.T) {
	a := CanonicalURL("https://x.com/a?utm_source=x&id=1")
	b := CanonicalURL("https://x.com/a?id=1")
	if a != b {
		t.Errorf("Expected equivalent canonical forms, got %q and %q", a, b)
	}
}

func TestCanonicalURL_UnparseableFallback(t *testing.T) {
	if got := CanonicalURL("Not A URL/"); got != "not a url" {
		t.Errorf("Expected lowercased, slash-trimmed fallback, got %q", got)
	}
}

func TestTrigrams(t *testing.T) {
	trigrams := Trigrams("AI!")
	if len(trigrams) != 0 {
		t.Errorf("Expected no trigrams for a 2-char normalized title, got %d", len(trigrams))
	}

	trigrams = Trigrams("abcd")
	if len(trigrams) != 2 {
		t.Errorf("Expected 2 trigrams for 'abcd', got %d", len(trigrams))
	}
	if !trigrams["abc"] || !trigrams["bcd"] {
		t.Errorf("Expected trigrams 'abc' and 'bcd', got %v", trigrams)
	}
}

func TestTitleSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"OpenAI releases new model", "OpenAI releases a new model"},
		{"Quantum computing breakthrough", "Breakthrough in quantum computing"},
		{"completely different", "nothing alike at all"},
	}

	for _, pair := range pairs {
		ab := TitleSimilarity(pair[0], pair[1])
		ba := TitleSimilarity(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric for %q / %q: %f vs %f", pair[0], pair[1], ab, ba)
		}
	}
}

func TestTitleSimilarity_Bounds(t *testing.T) {
	if sim := TitleSimilarity("identical title here", "identical title here"); sim != 1.0 {
		t.Errorf("Expected self-similarity 1.0, got %f", sim)
	}
	if sim := TitleSimilarity("", "some title"); sim != 0 {
		t.Errorf("Expected 0 for empty title, got %f", sim)
	}
	if sim := TitleSimilarity("!!", "??"); sim != 0 {
		t.Errorf("Expected 0 when both trigram sets are empty, got %f", sim)
	}
}

func rawItem(title, url, content string) core.RawItem {
	return core.RawItem{
		Title:   title,
		URL:     url,
		Content: content,
		Source:  core.SourceConfig{Name: "test", Type: core.SourceRSS},
	}
}

func TestDeduplicate_URLPass(t *testing.T) {
	// Two items with the same canonical URL: the 50-char content survives.
	longContent := "This body has fifty characters of content here OK."
	items := []core.RawItem{
		rawItem("Story A", "https://example.com/a?utm_source=rss", "ten chars."),
		rawItem("Story A again", "https://example.com/a", longContent),
		rawItem("Unrelated story about databases", "https://example.com/b", "other"),
	}

	result := Deduplicate(items)
	if len(result) != 2 {
		t.Fatalf("Expected 2 items after dedup, got %d", len(result))
	}
	if result[0].Content != longContent {
		t.Errorf("Expected the longer-content duplicate to survive, got %q", result[0].Content)
	}
	if result[1].URL != "https://example.com/b" {
		t.Errorf("Expected the unrelated item to survive, got %s", result[1].URL)
	}
}

func TestDeduplicate_URLPassTieFavorsFirst(t *testing.T) {
	items := []core.RawItem{
		rawItem("First seen", "https://example.com/a", "equal"),
		rawItem("Second seen", "https://example.com/a/", "equal"),
	}

	result := Deduplicate(items)
	if len(result) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(result))
	}
	if result[0].Title != "First seen" {
		t.Errorf("Expected tie to favor first-seen item, got %q", result[0].Title)
	}
}

func TestDeduplicate_TitlePass(t *testing.T) {
	items := []core.RawItem{
		rawItem("OpenAI announces GPT-5 model release", "https://a.com/1", "short"),
		rawItem("OpenAI announces GPT-5 model release!", "https://b.com/2", "much longer content body"),
		rawItem("Completely unrelated quantum computing news", "https://c.com/3", "x"),
	}

	result := Deduplicate(items)
	if len(result) != 2 {
		t.Fatalf("Expected 2 items after title dedup, got %d", len(result))
	}
	if result[0].URL != "https://b.com/2" {
		t.Errorf("Expected longer-content near-duplicate to survive, got %s", result[0].URL)
	}
}

func TestDeduplicate_OutputNotLargerThanInput(t *testing.T) {
	inputs := [][]core.RawItem{
		nil,
		{rawItem("a single item title", "https://a.com/1", "")},
		{
			rawItem("first title goes here", "https://a.com/1", ""),
			rawItem("second title goes here", "https://a.com/2", ""),
			rawItem("third distinct headline", "https://a.com/3", ""),
		},
	}

	for _, items := range inputs {
		result := Deduplicate(items)
		if len(result) > len(items) {
			t.Errorf("Dedup output (%d) larger than input (%d)", len(result), len(items))
		}
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	items := []core.RawItem{
		rawItem("OpenAI announces GPT-5 model release", "https://a.com/1", "short"),
		rawItem("OpenAI announces GPT-5 model release!", "https://b.com/2", "longer body"),
		rawItem("Quantum computing milestone reached today", "https://c.com/3", "y"),
		rawItem("Quantum computing milestone reached today", "https://c.com/3?utm_source=x", "yy"),
	}

	once := Deduplicate(items)
	twice := Deduplicate(once)

	if len(once) != len(twice) {
		t.Fatalf("Dedup not idempotent: %d then %d items", len(once), len(twice))
	}
	for i := range once {
		if once[i].URL != twice[i].URL {
			t.Errorf("Dedup not idempotent at index %d: %s vs %s", i, once[i].URL, twice[i].URL)
		}
	}
}
