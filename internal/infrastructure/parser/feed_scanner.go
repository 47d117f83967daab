package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/scanner"
)

// FeedScanner reads RSS and Atom feeds.
type FeedScanner struct {
	client *http.Client
}

// NewFeedScanner wires an HTTP client; nil falls back to a default one.
func NewFeedScanner(client *http.Client) *FeedScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &FeedScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// Scan parses the feed and keeps entries inside the lookback and keyword filters.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	var parsed *gofeed.Feed
	err := fetch(ctx, f.client, req.URL, req.Timeout, func(body io.Reader) error {
		var err error
		parsed, err = gofeed.NewParser().Parse(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		body := entry.Description
		if body == "" {
			body = entry.Content
		}
		body = cleanText(body)
		title := cleanText(entry.Title)

		if !matchesKeywords(req.Geo.Keywords, title, body) {
			continue
		}

		occurred := entryTime(entry)
		if !req.Since.IsZero() && !occurred.IsZero() && occurred.Before(req.Since) {
			continue
		}

		items = append(items, domain.RawItem{
			SourceID:   req.SourceID,
			ExternalID: entryID(entry),
			Title:      title,
			Body:       body,
			Category:   req.Category,
			OccurredAt: occurred,
			URL:        entry.Link,
		})
	}

	return items, nil
}

func entryID(entry *gofeed.Item) string {
	if id := strings.TrimSpace(entry.GUID); id != "" {
		return id
	}
	return strings.TrimSpace(entry.Link)
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}
