// Package dedup collapses near-identical feed items before they reach the
// expensive summarization stage. It runs two passes: exact canonical-URL
// dedup, then a fuzzy title sweep based on trigram similarity.
package dedup

import (
	"net/url"
	"sort"
	"strings"

	"pulse/internal/core"
	"pulse/internal/logger"
)

// TitleSimilarityThreshold is the Jaccard score at or above which two titles
// are treated as the same story.
const TitleSimilarityThreshold = 0.85

// trackingParams are query parameters stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
	"source":       true,
	"via":          true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// CanonicalURL normalizes a URL for identity comparison: lowercases the host,
// removes tracking parameters, sorts the surviving query parameters, and
// strips the trailing slash and fragment. Unparseable URLs fall back to a
// lowercased, slash-trimmed copy of the input.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}
	parsed.RawQuery = encodeSorted(query)

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String()
}

// encodeSorted renders query values with keys in deterministic order.
// url.Values.Encode already sorts by key; this keeps that contract explicit.
func encodeSorted(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := values[key]
		sort.Strings(vals)
		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// Trigrams returns the set of 3-character substrings of text after
// lowercasing and removing non-alphanumeric characters (spaces kept).
func Trigrams(text string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	normalized := strings.TrimSpace(b.String())

	trigrams := make(map[string]bool)
	for i := 0; i+3 <= len(normalized); i++ {
		trigrams[normalized[i:i+3]] = true
	}
	return trigrams
}

// TitleSimilarity computes the Jaccard index over the trigram sets of two
// titles. It returns 0 when either set is empty.
func TitleSimilarity(a, b string) float64 {
	trigramsA := Trigrams(a)
	trigramsB := Trigrams(b)
	if len(trigramsA) == 0 || len(trigramsB) == 0 {
		return 0
	}

	intersection := 0
	for t := range trigramsA {
		if trigramsB[t] {
			intersection++
		}
	}
	union := len(trigramsA) + len(trigramsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Deduplicate collapses near-identical items. Pass 1 merges items sharing a
// canonical URL, keeping the one with more content (first seen wins ties).
// Pass 2 is a pairwise sweep discarding the shorter-content item of any pair
// whose title similarity meets the threshold. Output order follows input
// order of the survivors, so the function is deterministic for a given input
// ordering and idempotent on its own output.
func Deduplicate(items []core.RawItem) []core.RawItem {
	if len(items) == 0 {
		return nil
	}

	// Pass 1: canonical URL collapse.
	index := make(map[string]int)
	var byURL []core.RawItem
	for _, item := range items {
		canonical := CanonicalURL(item.URL)
		if at, seen := index[canonical]; seen {
			if len(item.Content) > len(byURL[at].Content) {
				byURL[at] = item
			}
			continue
		}
		index[canonical] = len(byURL)
		byURL = append(byURL, item)
	}

	logger.Debug("URL dedup pass complete", "before", len(items), "after", len(byURL))

	// Pass 2: fuzzy title sweep. Quadratic, fine at daily batch sizes.
	removed := make(map[int]bool)
	for i := 0; i < len(byURL); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(byURL); j++ {
			if removed[j] {
				continue
			}
			if TitleSimilarity(byURL[i].Title, byURL[j].Title) < TitleSimilarityThreshold {
				continue
			}
			if len(byURL[j].Content) > len(byURL[i].Content) {
				removed[i] = true
				break
			}
			removed[j] = true
		}
	}

	var result []core.RawItem
	for i, item := range byURL {
		if !removed[i] {
			result = append(result, item)
		}
	}

	logger.Debug("Title dedup pass complete", "before", len(byURL), "after", len(result))
	return result
}
