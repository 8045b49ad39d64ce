package protein

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

// Client is a Service backed by a JSON project summary served over HTTP.
//
// The summary is a JSON array of Entry objects. It is downloaded on first use
// and again once it is older than the refresh interval. Concurrent lookups
// share one download, and downloads are rate limited.
type Client struct {
	url     string
	hc      *http.Client
	limiter *rate.Limiter
	refresh time.Duration
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	catalog   *Catalog
	fetchedAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithRateLimit limits summary downloads to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRefreshInterval sets how long a downloaded summary is reused.
func WithRefreshInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.refresh = d }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a summary client for url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		refresh: time.Hour,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Service.
func (c *Client) Get(ctx context.Context, projectID int) (workunit.Protein, error) {
	catalog, err := c.summary(ctx)
	if err != nil {
		return workunit.Protein{}, err
	}
	return catalog.Get(ctx, projectID)
}

// summary returns the cached catalog, downloading it when missing or stale.
func (c *Client) summary(ctx context.Context) (*Catalog, error) {
	c.mu.RLock()
	catalog, fetchedAt := c.catalog, c.fetchedAt
	c.mu.RUnlock()
	if catalog != nil && c.now().Sub(fetchedAt) < c.refresh {
		return catalog, nil
	}

	v, err, _ := c.group.Do("summary", func() (any, error) {
		return c.download(ctx)
	})
	if err != nil {
		if catalog != nil {
			c.logger.Warn("project summary refresh failed, using cached copy",
				"url", c.url,
				"error", err)
			return catalog, nil
		}
		return nil, err
	}
	return v.(*Catalog), nil
}

func (c *Client) download(ctx context.Context) (*Catalog, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("project summary: unexpected status %d: %s", resp.StatusCode, body)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("project summary: decode: %w", err)
	}

	catalog := NewCatalog(entries)
	c.mu.Lock()
	c.catalog = catalog
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("project summary downloaded",
		"url", c.url,
		"projects", catalog.Len(),
		"duration", c.now().Sub(start))
	return catalog, nil
}
