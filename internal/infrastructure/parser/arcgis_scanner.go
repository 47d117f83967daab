package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/scanner"
)

const (
	arcgisPageSize   = 2000
	arcgisMaxRecords = 10000
	arcgisOutFields  = "EVENT_UNIQUE_ID,OCC_DATE,OFFENCE,MCI_CATEGORY,NEIGHBOURHOOD_158"
)

// ArcGISScanner pages through a FeatureServer query endpoint.
type ArcGISScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewArcGISScanner wires an HTTP client; nil falls back to a default one.
func NewArcGISScanner(client *http.Client, logger *slog.Logger) *ArcGISScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &ArcGISScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (a *ArcGISScanner) Name() string {
	return "arcgis"
}

type arcgisResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Scan requests every page matching the geography and lookback filters.
func (a *ArcGISScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	pageSize, err := strconv.Atoi(req.Option("page_size", strconv.Itoa(arcgisPageSize)))
	if err != nil || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page_size %q", req.Options["page_size"])
	}
	maxRecords, err := strconv.Atoi(req.Option("max_records", strconv.Itoa(arcgisMaxRecords)))
	if err != nil || maxRecords <= 0 {
		return nil, fmt.Errorf("invalid max_records %q", req.Options["max_records"])
	}

	dateField := req.Option("date_field", "OCC_DATE")
	where := buildWhere(req.Geo, dateField, req.Since)

	var items []domain.RawItem
	for offset := 0; ; offset += pageSize {
		pageURL, err := buildQueryURL(req.URL, url.Values{
			"where":             {where},
			"outFields":         {req.Option("out_fields", arcgisOutFields)},
			"returnGeometry":    {"false"},
			"orderByFields":     {dateField + " DESC"},
			"f":                 {"json"},
			"resultOffset":      {strconv.Itoa(offset)},
			"resultRecordCount": {strconv.Itoa(pageSize)},
		})
		if err != nil {
			return nil, err
		}

		var page arcgisResponse
		err = fetch(ctx, a.client, pageURL, req.Timeout, func(body io.Reader) error {
			return json.NewDecoder(body).Decode(&page)
		})
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", offset, err)
		}
		if page.Error != nil {
			return nil, fmt.Errorf("arcgis error %d: %s", page.Error.Code, page.Error.Message)
		}

		for _, feat := range page.Features {
			items = append(items, a.toItem(req, dateField, feat.Attributes))
			if len(items) >= maxRecords {
				break
			}
		}

		a.debug("arcgis page", "source", req.SourceID, "offset", offset, "features", len(page.Features))
		if len(page.Features) < pageSize || len(items) >= maxRecords {
			break
		}
	}

	return items, nil
}

func (a *ArcGISScanner) toItem(req scanner.Request, dateField string, attrs map[string]any) domain.RawItem {
	offence := attrString(attrs, req.Option("title_field", "OFFENCE"))
	mci := attrString(attrs, "MCI_CATEGORY")
	hood := attrString(attrs, req.Geo.Field)

	occurred := attrEpochMillis(attrs, dateField)

	// One event can carry several offences, each its own row.
	externalID := attrString(attrs, req.Option("id_field", "EVENT_UNIQUE_ID"))
	if externalID != "" {
		externalID = externalID + "|" + offence
	} else {
		externalID = hashKey(occurred.UTC().Format(time.RFC3339), offence, mci, hood)
	}

	var body []string
	if mci != "" && !strings.EqualFold(mci, offence) {
		body = append(body, mci)
	}
	if hood != "" {
		body = append(body, hood)
	}

	return domain.RawItem{
		SourceID:    req.SourceID,
		ExternalID:  externalID,
		Title:       offence,
		Body:        strings.Join(body, ", "),
		Category:    req.Category,
		Subcategory: mci,
		OccurredAt:  occurred,
	}
}

func buildWhere(geo scanner.GeoFilter, dateField string, since time.Time) string {
	var clauses []string
	if geo.Field != "" && len(geo.Values) > 0 {
		ors := make([]string, 0, len(geo.Values))
		for _, v := range geo.Values {
			ors = append(ors, fmt.Sprintf("%s = '%s'", geo.Field, strings.ReplaceAll(v, "'", "''")))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if !since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("%s >= DATE '%s'", dateField, since.Format("2006-01-02")))
	}
	if len(clauses) == 0 {
		return "1=1"
	}
	return strings.Join(clauses, " AND ")
}

func buildQueryURL(base string, params url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", base, err)
	}
	query := parsed.Query()
	for k, v := range params {
		query[k] = v
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func attrString(attrs map[string]any, key string) string {
	if key == "" {
		return ""
	}
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func attrEpochMillis(attrs map[string]any, key string) time.Time {
	v, ok := attrs[key].(float64)
	if !ok || v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(v)).UTC()
}

func (a *ArcGISScanner) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
