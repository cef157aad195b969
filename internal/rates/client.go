// Package rates is a best-effort client for a remote exchange rate service.
//
// Every failure is reported as an error wrapping ErrUnavailable; callers are
// expected to fall back to unconverted amounts.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/log"
)

const (
	DefaultBaseURL = "https://api.exchangerate.host"

	defaultTimeout   = 5 * time.Second
	defaultCacheSize = 64
	maxBodyBytes     = 1 << 20
)

// ErrUnavailable marks any failure to obtain rates or a conversion.
var ErrUnavailable = errors.New("exchange rates unavailable")

// Rates is one snapshot of rates relative to Base. Each FetchRates call
// returns its own copy of the map.
type Rates struct {
	Base      string
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
}

func (r Rates) clone() Rates {
	r.Rates = maps.Clone(r.Rates)
	return r
}

// Conversion is the outcome of an asynchronous conversion.
type Conversion struct {
	Amount decimal.Decimal
	Err    error
}

type latestResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

type convertResponse struct {
	Result *decimal.Decimal `json:"result"`
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client fetches rates and conversions. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	cache      *cache.LRUCache[Rates]
	cacheTTL   time.Duration
	timeout    time.Duration
	group      singleflight.Group
}

// NewClient creates a rate client. A zero CacheTTL disables caching.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentRates),
		cache:      cache.NewLRUCache[Rates](defaultCacheSize, opts.CacheTTL),
		cacheTTL:   opts.CacheTTL,
		timeout:    timeout,
	}
}

// Cache exposes the rate cache so it can be registered with a cache.Manager.
func (c *Client) Cache() cache.Cleaner {
	return c.cache
}

// FetchRates returns the latest rates for base. Concurrent calls for the same
// base share one request, which runs detached from any single caller's
// cancellation and is bounded by the client timeout. A caller whose ctx ends
// first stops waiting without failing the others.
func (c *Client) FetchRates(ctx context.Context, base string) (Rates, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return Rates{}, fmt.Errorf("%w: empty base currency", ErrUnavailable)
	}

	if c.cacheTTL > 0 {
		if r, ok := c.cache.Get(base); ok {
			c.logger.DebugContext(ctx, "Rates cache hit", log.FieldBase, base)
			return r.clone(), nil
		}
	}

	flight := c.group.DoChan(base, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		var body latestResponse
		q := url.Values{"base": {base}}
		if err := c.getJSON(fetchCtx, "/latest", q, &body); err != nil {
			return Rates{}, err
		}
		if body.Rates == nil {
			return Rates{}, fmt.Errorf("%w: response has no rates", ErrUnavailable)
		}
		r := Rates{Base: base, Rates: body.Rates, FetchedAt: time.Now()}
		if c.cacheTTL > 0 {
			c.cache.Set(base, r)
		}
		return r, nil
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return Rates{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	if err := res.Err; err != nil {
		c.logger.WarnContext(ctx, "Failed to fetch exchange rates",
			log.FieldBase, base,
			log.FieldOperation, log.OpFetch,
			log.FieldError, err)
		return Rates{}, err
	}
	return res.Val.(Rates).clone(), nil
}

// Convert converts amount from one currency to another. Identical codes
// return amount unchanged without any network call.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount, nil
	}

	var body convertResponse
	q := url.Values{"from": {from}, "to": {to}, "amount": {amount.String()}}
	err := c.getJSON(ctx, "/convert", q, &body)
	if err == nil && body.Result == nil {
		err = fmt.Errorf("%w: response has no result", ErrUnavailable)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to convert amount",
			"from", from,
			"to", to,
			log.FieldOperation, log.OpConvert,
			log.FieldError, err)
		return decimal.Zero, err
	}
	return *body.Result, nil
}

// ConvertAsync runs Convert in the background. The returned channel receives
// exactly one value and is buffered, so callers may abandon it.
func (c *Client) ConvertAsync(ctx context.Context, amount decimal.Decimal, from, to string) <-chan Conversion {
	ch := make(chan Conversion, 1)
	go func() {
		defer close(ch)
		v, err := c.Convert(ctx, amount, from, to)
		ch <- Conversion{Amount: v, Err: err}
	}()
	return ch
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
