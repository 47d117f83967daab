package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

const (
	defaultBaseURL = "https://api.brevo.com"
	emailPath      = "/v3/smtp/email"
	smsPath        = "/v3/transactionalSMS/sms"

	// Brevo rejects transactional SMS content above this many characters.
	maxSMSRunes = 640
)

// Transport delivers messages through Brevo's transactional email and SMS API.
type Transport struct {
	baseURL     string
	apiKey      string
	senderName  string
	senderEmail string
	smsSender   string
	limiter     *rate.Limiter
	client      *http.Client
}

var _ ports.Transport = (*Transport)(nil)

// NewTransport builds a rate limited transport. A non-positive rate disables limiting.
func NewTransport(cfg config.EmailConfig) *Transport {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Transport{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
		smsSender:   cfg.SMSSender,
		limiter:     rate.NewLimiter(limit, 1),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type emailRequest struct {
	Sender      contact   `json:"sender"`
	To          []contact `json:"to"`
	Subject     string    `json:"subject"`
	TextContent string    `json:"textContent"`
	HTMLContent string    `json:"htmlContent"`
}

type smsRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

// Send posts one message. Any non-2xx answer is returned as an error.
func (t *Transport) Send(ctx context.Context, msg domain.Message) error {
	if t.apiKey == "" {
		return fmt.Errorf("brevo transport misconfigured")
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return fmt.Errorf("empty %s recipient", msg.Channel)
	}

	var (
		path    string
		payload any
	)
	switch msg.Channel {
	case domain.ChannelEmail:
		path = emailPath
		payload = emailRequest{
			Sender:      contact{Name: t.senderName, Email: t.senderEmail},
			To:          []contact{{Email: msg.Recipient}},
			Subject:     msg.Subject,
			TextContent: msg.Body,
			HTMLContent: "<pre>" + html.EscapeString(msg.Body) + "</pre>",
		}
	case domain.ChannelSMS:
		path = smsPath
		payload = smsRequest{
			Sender:    t.smsSender,
			Recipient: msg.Recipient,
			Content:   truncateRunes(msg.Body, maxSMSRunes),
			Type:      "transactional",
		}
	default:
		return fmt.Errorf("unsupported channel %q", msg.Channel)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return t.post(ctx, path, payload)
}

func (t *Transport) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("api-key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("brevo error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
