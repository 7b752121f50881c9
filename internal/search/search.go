// Package search implements the Search Client (C3): a single-query text
// search with the retry and empty-result semantics spec §4.3 requires.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/gateway"
)

// Client runs a search query and returns a single merged text result.
// Implementations must retry transport errors internally (spec §4.3: two
// retries) and must NOT treat an empty result set as an error.
type Client interface {
	Search(ctx context.Context, query string) (string, error)
}

// HTTPClient is the default search adapter: it fetches a configured
// search-results endpoint and extracts result titles/snippets with
// goquery, grounded on Upal's internal/services/stage_collect.go
// fetchScrape and internal/tools/get_webpage.go's fetch-with-timeout
// shape.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxResults int
}

// New builds the default HTTP+goquery search client.
func New(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxResults: 10,
	}
}

// Search fetches baseURL?q=query, parses result items, and returns their
// titles and snippets concatenated per spec §4.3's format: one blank-line-
// separated "title\nsnippet" block per result, in document order. Retries
// transport errors up to twice (three attempts total); an empty result set
// is returned as an empty string, not an error.
func (c *HTTPClient) Search(ctx context.Context, query string) (string, error) {
	const maxAttempts = 3
	policy := gateway.DefaultPolicy()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, err := c.fetchOnce(ctx, query)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(gateway.CalculateBackoff(policy, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", apperr.Wrap(apperr.SearchUnavailable, lastErr, "search failed after %d attempts", maxAttempts)
}

func (c *HTTPClient) fetchOnce(ctx context.Context, query string) (string, error) {
	reqURL := c.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; GraphExecBot/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var blocks []string
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= c.maxResults {
			return false
		}
		title := strings.TrimSpace(s.Find(".result-title").Text())
		snippet := strings.TrimSpace(s.Find(".result-snippet").Text())
		if title == "" && snippet == "" {
			return true
		}
		blocks = append(blocks, strings.TrimSpace(title+"\n"+snippet))
		return true
	})

	return strings.Join(blocks, "\n\n"), nil
}
