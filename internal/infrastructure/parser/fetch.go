package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	userAgent      = "WolverineBrief/1.0"
	defaultTimeout = 60 * time.Second
)

var stripPolicy = bluemonday.StrictPolicy()

// fetch issues a GET bounded by timeout and hands the body to consume
// while the request context is still alive.
func fetch(ctx context.Context, client *http.Client, pageURL string, timeout time.Duration, consume func(io.Reader) error) error {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	return consume(resp.Body)
}

// cleanText strips markup and collapses whitespace.
func cleanText(value string) string {
	plain := html.UnescapeString(stripPolicy.Sanitize(value))
	return strings.Join(strings.Fields(plain), " ")
}

// hashKey derives a stable external id for records without one.
func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

func matchesKeywords(keywords []string, texts ...string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(texts, " "))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func parseTimeAny(value string, loc *time.Location, layouts ...string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
