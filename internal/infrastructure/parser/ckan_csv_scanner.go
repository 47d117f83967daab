package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/scanner"
)

const ckanMaxRows = 50000

var permitDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// CKANCSVScanner streams a CKAN CSV resource and keeps rows inside the geo prefix.
type CKANCSVScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewCKANCSVScanner wires an HTTP client; nil falls back to a default one.
func NewCKANCSVScanner(client *http.Client, logger *slog.Logger) *CKANCSVScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &CKANCSVScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (c *CKANCSVScanner) Name() string {
	return "ckan_csv"
}

// Scan reads up to max_rows rows and maps matching ones to items.
func (c *CKANCSVScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	maxRows, err := strconv.Atoi(req.Option("max_rows", strconv.Itoa(ckanMaxRows)))
	if err != nil || maxRows <= 0 {
		return nil, fmt.Errorf("invalid max_rows %q", req.Options["max_rows"])
	}

	var items []domain.RawItem
	err = fetch(ctx, c.client, req.URL, req.Timeout, func(body io.Reader) error {
		parsed, err := c.readRows(req, body, maxRows)
		items = parsed
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CKANCSVScanner) readRows(req scanner.Request, body io.Reader, maxRows int) ([]domain.RawItem, error) {
	reader := csv.NewReader(body)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	geoField := strings.ToUpper(req.Geo.Field)
	if geoField == "" {
		geoField = "POSTAL"
	}
	prefix := strings.ToUpper(strings.TrimSpace(req.Geo.Prefix))
	idFields := strings.Split(req.Option("id_fields", "PERMIT_NUM,REVISION_NUM"), ",")

	var (
		items   []domain.RawItem
		skipped int
	)
	for rows := 0; rows < maxRows; rows++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}

		get := func(name string) string {
			if idx, ok := columns[strings.ToUpper(strings.TrimSpace(name))]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		if prefix != "" && !strings.HasPrefix(strings.ToUpper(get(geoField)), prefix) {
			continue
		}

		occurred := parseTimeAny(get("ISSUED_DATE"), req.Zone(), permitDateLayouts...)
		if occurred.IsZero() {
			occurred = parseTimeAny(get("APPLICATION_DATE"), req.Zone(), permitDateLayouts...)
		}
		if !req.Since.IsZero() && !occurred.IsZero() && occurred.Before(req.Since) {
			continue
		}

		idParts := make([]string, 0, len(idFields))
		for _, f := range idFields {
			if v := get(f); v != "" {
				idParts = append(idParts, v)
			}
		}

		work := get("WORK")
		title := work
		if address := strings.Join(strings.Fields(strings.Join([]string{get("STREET_NUM"), get("STREET_NAME"), get("STREET_TYPE")}, " ")), " "); address != "" && work != "" {
			title = title + " at " + address
		}

		items = append(items, domain.RawItem{
			SourceID:    req.SourceID,
			ExternalID:  strings.Join(idParts, "-"),
			Title:       title,
			Body:        cleanText(get("DESCRIPTION")),
			Category:    req.Category,
			Subcategory: work,
			OccurredAt:  occurred,
		})
	}

	if skipped > 0 && c.logger != nil {
		c.logger.Warn("skipped malformed csv rows", "source", req.SourceID, "rows", skipped)
	}
	return items, nil
}
