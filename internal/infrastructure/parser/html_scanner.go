package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/scanner"
)

// HTMLScanner extracts items from a listing page using CSS selectors from options:
// item (required), title, link, date, body, date_layout.
type HTMLScanner struct {
	client *http.Client
}

// NewHTMLScanner wires an HTTP client; nil falls back to a default one.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &HTMLScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and maps every item node to a candidate.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	itemSel := req.Option("item", "")
	if itemSel == "" {
		return nil, fmt.Errorf("html scanner needs an item selector for source %s", req.SourceID)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", req.URL, err)
	}

	var doc *goquery.Document
	err = fetch(ctx, h.client, req.URL, req.Timeout, func(body io.Reader) error {
		var err error
		doc, err = goquery.NewDocumentFromReader(body)
		if err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var items []domain.RawItem
	doc.Find(itemSel).Each(func(_ int, sel *goquery.Selection) {
		item := parseNode(sel, base, req)
		if !matchesKeywords(req.Geo.Keywords, item.Title, item.Body) {
			return
		}
		if !req.Since.IsZero() && !item.OccurredAt.IsZero() && item.OccurredAt.Before(req.Since) {
			return
		}
		items = append(items, item)
	})

	return items, nil
}

func parseNode(sel *goquery.Selection, base *url.URL, req scanner.Request) domain.RawItem {
	title := strings.TrimSpace(sel.Find(req.Option("title", "a")).First().Text())

	var link string
	if href, ok := sel.Find(req.Option("link", "a")).First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	var body string
	if bodySel := req.Option("body", ""); bodySel != "" {
		body = cleanText(sel.Find(bodySel).First().Text())
	}

	var dateText string
	if dateSel := req.Option("date", ""); dateSel != "" {
		node := sel.Find(dateSel).First()
		if dt, ok := node.Attr("datetime"); ok {
			dateText = dt
		} else {
			dateText = node.Text()
		}
	}
	occurred := parseTimeAny(dateText, req.Zone(),
		req.Option("date_layout", "2006-01-02"),
		"2006-01-02T15:04:05Z07:00",
		"January 2, 2006",
		"Jan 2, 2006",
	)

	externalID := link
	if externalID == "" && title != "" {
		externalID = hashKey(title, dateText)
	}

	return domain.RawItem{
		SourceID:   req.SourceID,
		ExternalID: externalID,
		Title:      cleanText(title),
		Body:       body,
		Category:   req.Category,
		OccurredAt: occurred,
		URL:        link,
	}
}
