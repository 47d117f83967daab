package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

const defaultPageSize = 1000

// Directory reads subscribers through the Supabase REST (PostgREST) API.
type Directory struct {
	baseURL  string
	key      string
	table    string
	orderBy  string
	pageSize int
	client   *http.Client
}

var _ ports.SubscriberDirectory = (*Directory)(nil)

// NewDirectory builds a client from configuration.
func NewDirectory(cfg config.SupabaseConfig) *Directory {
	table := cfg.Table
	if table == "" {
		table = "subscribers"
	}
	return &Directory{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		key:      cfg.ServiceKey,
		table:    table,
		orderBy:  strings.TrimSpace(cfg.OrderBy),
		pageSize: defaultPageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type subscriberRow struct {
	ID       json.RawMessage `json:"id"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Channels []string        `json:"channels"`
	Status   string          `json:"status"`
}

// List pages through the whole subscriber table.
func (d *Directory) List(ctx context.Context) ([]domain.Subscriber, error) {
	if d.baseURL == "" || d.key == "" {
		return nil, fmt.Errorf("supabase directory misconfigured")
	}

	var subscribers []domain.Subscriber
	for offset := 0; ; offset += d.pageSize {
		rows, err := d.page(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			subscribers = append(subscribers, row.toDomain())
		}
		if len(rows) < d.pageSize {
			break
		}
	}
	return subscribers, nil
}

func (d *Directory) page(ctx context.Context, offset int) ([]subscriberRow, error) {
	query := url.Values{}
	query.Set("select", "*")
	if d.orderBy != "" {
		query.Set("order", d.orderBy+".asc")
	}
	query.Set("limit", strconv.Itoa(d.pageSize))
	query.Set("offset", strconv.Itoa(offset))
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", d.baseURL, url.PathEscape(d.table), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apikey", d.key)
	req.Header.Set("Authorization", "Bearer "+d.key)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("supabase error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var rows []subscriberRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}
	return rows, nil
}

// Rows from the legacy email-only table carry no status; they count as active.
func (r subscriberRow) toDomain() domain.Subscriber {
	status := domain.SubscriberStatus(strings.ToLower(strings.TrimSpace(r.Status)))
	if status == "" {
		status = domain.StatusActive
	}

	var channels []domain.Channel
	for _, ch := range r.Channels {
		switch c := domain.Channel(strings.ToLower(strings.TrimSpace(ch))); c {
		case domain.ChannelEmail, domain.ChannelSMS:
			channels = append(channels, c)
		}
	}

	id := strings.Trim(string(r.ID), `"`)
	if id == "null" {
		id = ""
	}

	return domain.Subscriber{
		ID:       id,
		Email:    strings.TrimSpace(r.Email),
		Phone:    strings.TrimSpace(r.Phone),
		Channels: channels,
		Status:   status,
	}
}
