package connector

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"time"

	"github.com/pkorolev/factscan/internal/model"
)

// FeedConnector ingests one RSS 2.0 or Atom feed of fact-check
// articles.
type FeedConnector struct {
	feedURL string
	limit   int
	fetcher *Fetcher
}

// NewFeedConnector creates a connector for the given feed URL, taking
// at most limit items per fetch.
func NewFeedConnector(feedURL string, limit int, fetcher *Fetcher) *FeedConnector {
	if limit <= 0 {
		limit = 50
	}
	return &FeedConnector{feedURL: feedURL, limit: limit, fetcher: fetcher}
}

// Name identifies the connector by the feed's host.
func (c *FeedConnector) Name() string {
	if parsed, err := url.Parse(c.feedURL); err == nil && parsed.Host != "" {
		return "feed:" + parsed.Host
	}
	return "feed:" + c.feedURL
}

// Fetch downloads and parses the feed. Failures are soft: the pipeline
// logs them and continues with other sources.
func (c *FeedConnector) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	data, err := c.fetcher.Get(ctx, c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", c.feedURL, err)
	}

	entries, err := parseFeed(data)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", c.feedURL, err)
	}
	if len(entries) > c.limit {
		entries = entries[:c.limit]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]model.RawRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, model.RawRecord{
			Title:       e.title,
			Text:        stripHTML(e.summary),
			Source:      c.feedURL,
			URL:         e.link,
			PublishedAt: e.published,
			RetrievedAt: now,
		})
	}
	return records, nil
}

type feedEntry struct {
	title     string
	summary   string
	link      string
	published string
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

// parseFeed decodes RSS 2.0 first, then Atom.
func parseFeed(data []byte) ([]feedEntry, error) {
	var rss rssDocument
	if err := xml.Unmarshal(data, &rss); err == nil && len(rss.Channel.Items) > 0 {
		entries := make([]feedEntry, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			entries = append(entries, feedEntry{
				title:     item.Title,
				summary:   item.Description,
				link:      item.Link,
				published: item.PubDate,
			})
		}
		return entries, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(data, &atom); err == nil && len(atom.Entries) > 0 {
		entries := make([]feedEntry, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			link := ""
			for _, l := range entry.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			summary := entry.Summary
			if summary == "" {
				summary = entry.Content
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			entries = append(entries, feedEntry{
				title:     entry.Title,
				summary:   summary,
				link:      link,
				published: published,
			})
		}
		return entries, nil
	}

	return nil, fmt.Errorf("not a recognizable RSS or Atom document")
}
