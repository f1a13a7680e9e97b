package wuapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"wu-obs-scraper/internal/model"
)

const (
	DefaultBaseURL     = "https://api.weather.com"
	DefaultMaxAttempts = 5
	DefaultTimeout     = 30 * time.Second

	// BaseURLEnv points the client at an alternate endpoint, mainly for
	// tests and mirrors.
	BaseURLEnv = "WUOS_BASE_URL"

	UnitsMetric  = "m"
	UnitsEnglish = "e"
)

var (
	ErrAuth           = errors.New("api key rejected")
	ErrNoObservations = errors.New("no observations")
)

// DefaultRetryStatuses is the reverse-engineered set of transient upstream
// statuses. The upstream vendor documents none of this; the set is
// operator-configurable.
func DefaultRetryStatuses() []int {
	return []int{429, 500, 502, 503, 504}
}

type Options struct {
	APIKey         string
	BaseURL        string
	Units          string
	Timeout        time.Duration
	MaxAttempts    int
	RetryStatuses  []int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
	ProxyMode      string
	Proxies        []string
	// Now is the clock for the features time window; tests override it.
	Now func() time.Time
}

type Client struct {
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
	baseURL        string
	apiKey         string
	units          string
	maxAttempts    int
	retryStatuses  map[int]bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxElapsed     time.Duration
	rotation       *proxyRotation
	now            func() time.Time
}

func New(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	units, err := NormalizeUnits(opts.Units)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	statuses := opts.RetryStatuses
	if len(statuses) == 0 {
		statuses = DefaultRetryStatuses()
	}
	retryStatuses := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		if s < 100 || s > 599 {
			return nil, fmt.Errorf("invalid retry status %d (expected 100-599)", s)
		}
		retryStatuses[s] = true
	}

	rotation, err := newProxyRotation(opts.ProxyMode, opts.Proxies)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	initialBackoff := opts.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 500 * time.Millisecond
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	maxElapsed := opts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-com",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: rotation.proxyFunc},
		},
		breaker:        breaker,
		baseURL:        baseURL,
		apiKey:         apiKey,
		units:          units,
		maxAttempts:    maxAttempts,
		retryStatuses:  retryStatuses,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		maxElapsed:     maxElapsed,
		rotation:       rotation,
		now:            now,
	}, nil
}

func NormalizeUnits(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", UnitsMetric, "metric":
		return UnitsMetric, nil
	case UnitsEnglish, "english":
		return UnitsEnglish, nil
	default:
		return "", fmt.Errorf("invalid units %q (expected m or e)", strings.TrimSpace(raw))
	}
}

// FetchUnit retrieves the raw response body for one work unit. Transient
// failures are retried internally; any returned error is terminal for the
// unit, and errors matching ErrAuth are terminal for the whole run.
func (c *Client) FetchUnit(ctx context.Context, unit model.WorkUnit) ([]byte, error) {
	switch u := unit.(type) {
	case model.TileUnit:
		return c.Features(ctx, u.X, u.Y, u.Zoom)
	case model.StationMonthUnit:
		return c.DailyMonth(ctx, u.StationID, u.Year, u.Month)
	case model.StationDayUnit:
		return c.HistoricalDay(ctx, u.StationID, u.Year, u.Month, u.Day)
	default:
		return nil, fmt.Errorf("unknown work unit type %T", unit)
	}
}

// Features queries the station-discovery tile endpoint. The upstream lod
// parameter is the Web Mercator zoom plus one, and the time window is the
// latest 15-minute boundary extended by 15 minutes, in epoch milliseconds.
func (c *Client) Features(ctx context.Context, x, y, zoom int) ([]byte, error) {
	start := c.now().Truncate(15 * time.Minute)
	end := start.Add(15 * time.Minute)

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("x", strconv.Itoa(x))
	q.Set("y", strconv.Itoa(y))
	q.Set("lod", strconv.Itoa(zoom+1))
	q.Set("tile-size", "512")
	q.Set("time", fmt.Sprintf("%d-%d", start.UnixMilli(), end.UnixMilli()))

	body, err := c.get(ctx, c.baseURL+"/v2/vector-api/products/614/features?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("malformed features response for tile %d,%d zoom %d", x, y, zoom)
	}
	return body, nil
}

// DailyMonth queries one month of daily PWS observations. A well-formed
// response with an empty observations list is terminal for the unit and is
// never cached.
func (c *Client) DailyMonth(ctx context.Context, stationID string, year, month int) ([]byte, error) {
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("format", "json")
	q.Set("stationId", stationID)
	q.Set("startDate", monthStart.Format("20060102"))
	q.Set("endDate", monthEnd.Format("20060102"))
	q.Set("units", c.units)

	body, err := c.get(ctx, c.baseURL+"/v2/pws/history/daily?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Observations []json.RawMessage `json:"observations"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed daily response for %s %04d-%02d: %w", stationID, year, month, err)
	}
	if len(parsed.Observations) == 0 {
		return nil, fmt.Errorf("%w for %s %04d-%02d", ErrNoObservations, stationID, year, month)
	}
	return body, nil
}

// HistoricalDay queries one day of hourly observations for an NWS-operated
// station.
func (c *Client) HistoricalDay(ctx context.Context, stationID string, year, month, day int) ([]byte, error) {
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("startDate", start.Format("20060102"))
	q.Set("endDate", end.Format("20060102"))
	q.Set("units", c.units)

	body, err := c.get(ctx, c.baseURL+"/v1/location/"+url.PathEscape(stationID)+"/observations/historical.json?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("malformed historical response for %s %s", stationID, start.Format("2006-01-02"))
	}
	return body, nil
}

type attemptOutcome struct {
	body     []byte
	terminal error
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		// Terminal client errors are returned as breaker successes: only
		// network failures and retryable statuses count toward tripping it.
		v, err := c.breaker.Execute(func() (any, error) {
			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, fmt.Errorf("request failed: %w", doErr)
			}
			defer func() {
				_ = resp.Body.Close()
			}()

			b, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, fmt.Errorf("read body: %w", readErr)
			}

			status := resp.StatusCode
			switch {
			case status == http.StatusUnauthorized || status == http.StatusForbidden:
				return attemptOutcome{terminal: fmt.Errorf("%w: status %d: %s", ErrAuth, status, truncateBody(b))}, nil
			case c.retryStatuses[status]:
				return nil, fmt.Errorf("upstream status %d: %s", status, truncateBody(b))
			case status < 200 || status >= 300:
				return attemptOutcome{terminal: fmt.Errorf("client error: status %d: %s", status, truncateBody(b))}, nil
			default:
				return attemptOutcome{body: b}, nil
			}
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("upstream circuit open: %w", err)
			}
			return err
		}

		out := v.(attemptOutcome)
		if out.terminal != nil {
			return backoff.Permanent(out.terminal)
		}
		body = out.body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = c.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		return s[:512] + "...(truncated)"
	}
	return s
}
