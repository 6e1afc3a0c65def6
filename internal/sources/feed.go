package sources

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"pulse/internal/core"
)

// rss is the RSS 2.0 feed structure.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// atom is the Atom feed structure; arXiv serves this format.
type atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Link      []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParseFeed decodes body as RSS first, then Atom, and converts the entries to
// raw items. Items without a link are dropped.
func ParseFeed(body []byte, src core.SourceConfig) ([]core.RawItem, error) {
	var r rss
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&r); err == nil && len(r.Channel.Items) > 0 {
		return rssToItems(r, src), nil
	}

	var a atom
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&a); err == nil && len(a.Entries) > 0 {
		return atomToItems(a, src), nil
	}

	return nil, fmt.Errorf("unable to parse body as RSS or Atom")
}

func rssToItems(r rss, src core.SourceConfig) []core.RawItem {
	var items []core.RawItem
	for _, item := range r.Channel.Items {
		if item.Link == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "Untitled"
		}
		items = append(items, core.RawItem{
			Title:     title,
			URL:       item.Link,
			Content:   item.Description,
			Published: parseRSSDate(item.PubDate),
			Source:    src,
		})
	}
	return items
}

func atomToItems(a atom, src core.SourceConfig) []core.RawItem {
	var items []core.RawItem
	for _, entry := range a.Entries {
		link := ""
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		if link == "" {
			continue
		}

		// arXiv wraps titles across lines.
		title := strings.TrimSpace(strings.ReplaceAll(entry.Title, "\n", " "))
		if title == "" {
			title = "Untitled"
		}

		published := entry.Published
		if published == "" {
			published = entry.Updated
		}

		items = append(items, core.RawItem{
			Title:     title,
			URL:       link,
			Content:   strings.TrimSpace(entry.Summary),
			Published: parseAtomDate(published),
			Source:    src,
		})
	}
	return items
}

// parseRSSDate tries the date formats seen in real-world RSS feeds.
func parseRSSDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC1123,
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseAtomDate parses RFC3339 with an RSS-format fallback.
func parseAtomDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dateStr)); err == nil {
		return t.UTC()
	}
	return parseRSSDate(dateStr)
}
