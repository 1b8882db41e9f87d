package ckan

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

	"golang.org/x/time/rate"

	"github.com/mstlaur1/montreal-score/internal/config"
	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/observability"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second

	// errorBodyLimit caps how much of an error response ends up in logs
	// and error strings.
	errorBodyLimit = 4096
)

// Client fetches permit rows from a CKAN datastore API. The primary path
// is a server-side SQL query per year; when that fails the client walks
// the whole resource page by page and filters client-side, because the
// SQL endpoint is the first thing the portal turns off under load.
type Client struct {
	baseURL    string
	resourceID string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a CKAN datastore client.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.CKANBaseURL, "/"),
		resourceID: cfg.CKANResourceID,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst),
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchYear returns all raw records whose date_debut falls in the given
// year, trying the SQL endpoint first and paginating as a fallback.
func (c *Client) FetchYear(ctx context.Context, year int) ([]domain.RawRecord, error) {
	records, err := c.fetchSQL(ctx, year)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("sql fetch failed, falling back to pagination", "year", year, "error", err)
		c.metrics.FetchFallbacks.Inc()
		records, err = c.fetchPaginated(ctx, year)
		if err != nil {
			return nil, err
		}
	}

	c.metrics.RecordsFetched.Add(float64(len(records)))
	return records, nil
}

func (c *Client) fetchSQL(ctx context.Context, year int) ([]domain.RawRecord, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s" WHERE EXTRACT(YEAR FROM "date_debut") = %d ORDER BY "date_debut" DESC`,
		c.resourceID, year)
	result, err := c.doAction(ctx, "datastore_search_sql", url.Values{"sql": {query}})
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

func (c *Client) fetchPaginated(ctx context.Context, year int) ([]domain.RawRecord, error) {
	var all []domain.RawRecord
	offset := 0
	total := -1

	for {
		params := url.Values{
			"resource_id": {c.resourceID},
			"limit":       {strconv.Itoa(c.pageSize)},
			"offset":      {strconv.Itoa(offset)},
		}
		result, err := c.doAction(ctx, "datastore_search", params)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		if total < 0 {
			total = result.Total
		}
		all = append(all, result.Records...)
		c.logger.Info("fetched page", "year", year, "fetched", len(all), "total", total)

		if len(result.Records) == 0 || len(all) >= total {
			break
		}
		offset += c.pageSize
	}

	return filterYear(all, year), nil
}

// filterYear keeps records whose date_debut starts with the year. The
// paginated path scans the whole resource; the SQL path already filters
// server-side.
func filterYear(records []domain.RawRecord, year int) []domain.RawRecord {
	prefix := strconv.Itoa(year)
	filtered := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		if d := r.Str("date_debut"); d != nil && strings.HasPrefix(*d, prefix) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// doAction performs one CKAN API action with rate limiting and bounded
// retries. Transport failures and 5xx responses retry with exponential
// backoff; anything the API rejected outright does not.
func (c *Client) doAction(ctx context.Context, action string, params url.Values) (*searchResult, error) {
	endpoint := c.baseURL + "/" + action

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if !sleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		result, retryable, err := c.doOnce(ctx, action, endpoint, params)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("ckan request failed", "action", action, "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", action, maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, action, endpoint string, params url.Values) (*searchResult, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(action, "error").Inc()
		return nil, true, fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()
	c.metrics.FetchAPIDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.metrics.FetchRequests.WithLabelValues(action, "error").Inc()
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("ckan API error: status %d: %s", resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.metrics.FetchRequests.WithLabelValues(action, "error").Inc()
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		c.metrics.FetchRequests.WithLabelValues(action, "error").Inc()
		return nil, false, fmt.Errorf("ckan %s rejected: %s", action, apiError(env.Error))
	}

	c.metrics.FetchRequests.WithLabelValues(action, "success").Inc()
	return &env.Result, false, nil
}

func apiError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	s := string(raw)
	if len(s) > errorBodyLimit {
		s = s[:errorBodyLimit]
	}
	return s
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// CKAN API response types.

type envelope struct {
	Success bool            `json:"success"`
	Result  searchResult    `json:"result"`
	Error   json.RawMessage `json:"error"`
}

type searchResult struct {
	Records []domain.RawRecord `json:"records"`
	Total   int                `json:"total"`
}
