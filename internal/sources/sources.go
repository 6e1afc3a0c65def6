// Package sources fetches raw items from the configured set of heterogeneous
// feed sources. Each source is fetched in isolation: one source failing, or
// timing out, never costs the run the items of its siblings.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pulse/internal/core"
	"pulse/internal/logger"
)

const (
	// DefaultTimeout bounds the whole fan-out; sources still in flight when
	// it expires are cancelled via context, not abandoned.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxConcurrency bounds how many sources are fetched at once.
	DefaultMaxConcurrency = 8
	// MaxConsecutiveErrors is the failure streak past which a source is
	// skipped until its error count is reset out of band.
	MaxConsecutiveErrors = 5

	userAgent = "pulse-digest/1.0 (news aggregator)"
)

// Gateway fetches items from configured sources.
type Gateway struct {
	client         *http.Client
	timeout        time.Duration
	maxConcurrency int
}

// Options configures a Gateway.
type Options struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// NewGateway creates a feed gateway. Zero-value options get defaults.
func NewGateway(opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Gateway{
		client:         &http.Client{Timeout: opts.Timeout},
		timeout:        opts.Timeout,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// FetchAll fetches every enabled source concurrently, bounded by the
// configured concurrency, with the whole fan-out under a single deadline.
// Per-source failures are logged and contribute no items. The returned error
// is non-nil only when the fan-out itself could not run.
func (g *Gateway) FetchAll(ctx context.Context, configured []core.SourceConfig) ([]core.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("feed fetch aborted: %w", err)
	}

	var enabled []core.SourceConfig
	for _, src := range configured {
		if !src.Enabled {
			continue
		}
		if src.ConsecutiveErrors >= MaxConsecutiveErrors {
			logger.Warn("Skipping source with repeated failures",
				"source", src.Name, "consecutive_errors", src.ConsecutiveErrors)
			continue
		}
		enabled = append(enabled, src)
	}

	logger.Info("Fetching sources", "enabled", len(enabled), "configured", len(configured))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		allItems []core.RawItem
		failed   int
	)
	sem := make(chan struct{}, g.maxConcurrency)

	for _, src := range enabled {
		wg.Add(1)
		sem <- struct{}{}

		go func(src core.SourceConfig) {
			defer wg.Done()
			defer func() { <-sem }()

			items, err := g.Fetch(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logger.Error("Source fetch failed", err, "source", src.Name)
				return
			}
			allItems = append(allItems, items...)
			logger.Debug("Source fetched", "source", src.Name, "items", len(items))
		}(src)
	}

	wg.Wait()

	logger.Info("Source fan-out complete",
		"succeeded", len(enabled)-failed, "failed", failed, "items", len(allItems))
	return allItems, nil
}

// Fetch retrieves the items of a single source according to its type.
func (g *Gateway) Fetch(ctx context.Context, src core.SourceConfig) ([]core.RawItem, error) {
	switch src.Type {
	case core.SourceRSS, core.SourceArXiv:
		return g.fetchFeed(ctx, src)
	case core.SourceHackerNews:
		return g.fetchHackerNews(ctx, src)
	case core.SourceReddit:
		return g.fetchReddit(ctx, src)
	case core.SourceWeb:
		// Web scraping sources are configured but not fetched.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown source type %q for source %s", src.Type, src.Name)
	}
}

// get issues a context-bound GET and returns the response body.
func (g *Gateway) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}

// fetchFeed handles RSS and Atom (arXiv serves Atom) sources.
func (g *Gateway) fetchFeed(ctx context.Context, src core.SourceConfig) ([]core.RawItem, error) {
	body, err := g.get(ctx, src.URL, "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if err != nil {
		return nil, err
	}

	items, err := ParseFeed(body, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", src.Name, err)
	}
	return items, nil
}

// algoliaResponse is the Hacker News Algolia search API shape.
type algoliaResponse struct {
	Hits []struct {
		Title     string `json:"title"`
		URL       string `json:"url"`
		StoryText string `json:"story_text"`
		ObjectID  string `json:"objectID"`
		CreatedAt string `json:"created_at"`
	} `json:"hits"`
}

func (g *Gateway) fetchHackerNews(ctx context.Context, src core.SourceConfig) ([]core.RawItem, error) {
	body, err := g.get(ctx, src.URL, "application/json")
	if err != nil {
		return nil, err
	}

	var parsed algoliaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode Hacker News response: %w", err)
	}

	var items []core.RawItem
	for _, hit := range parsed.Hits {
		url := hit.URL
		if url == "" {
			if hit.ObjectID == "" {
				continue
			}
			url = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}
		title := hit.Title
		if title == "" {
			title = "Untitled"
		}
		items = append(items, core.RawItem{
			Title:     title,
			URL:       url,
			Content:   hit.StoryText,
			Published: parseTime(hit.CreatedAt),
			Source:    src,
		})
	}
	return items, nil
}

// redditResponse is the subreddit listing API shape.
type redditResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				URL        string  `json:"url"`
				SelfText   string  `json:"selftext"`
				Permalink  string  `json:"permalink"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (g *Gateway) fetchReddit(ctx context.Context, src core.SourceConfig) ([]core.RawItem, error) {
	body, err := g.get(ctx, src.URL, "application/json")
	if err != nil {
		return nil, err
	}

	var parsed redditResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode Reddit response: %w", err)
	}

	var items []core.RawItem
	for _, child := range parsed.Data.Children {
		post := child.Data
		url := post.URL
		// Self-posts link back into reddit; use the permalink instead.
		if isRedditInternal(url) && post.Permalink != "" {
			url = "https://www.reddit.com" + post.Permalink
		}
		if url == "" {
			continue
		}
		title := post.Title
		if title == "" {
			title = "Untitled"
		}
		var published time.Time
		if post.CreatedUTC > 0 {
			published = time.Unix(int64(post.CreatedUTC), 0).UTC()
		}
		items = append(items, core.RawItem{
			Title:     title,
			URL:       url,
			Content:   post.SelfText,
			Published: published,
			Source:    src,
		})
	}
	return items, nil
}

func isRedditInternal(url string) bool {
	return url == "" || strings.Contains(strings.ToLower(url), "reddit.com/r/")
}

// parseTime parses the RFC3339-flavored timestamps the JSON APIs return.
func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
