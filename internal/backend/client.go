package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	appLog "waymatcher/internal/log"
	"waymatcher/internal/model"
)

// EventsPath is the backend endpoint listing ride events.
const EventsPath = "/api/events"

// ErrCircuitOpen is returned while the backend circuit breaker is open.
var ErrCircuitOpen = errors.New("backend: circuit breaker is open")

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string

	// CacheDir holds meta.json / events.json for conditional requests.
	CacheDir string

	Timeout    time.Duration
	MaxRetries uint64

	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
}

// FetchResult contains the outcome of a single events fetch.
type FetchResult struct {
	Events    []model.RideEvent
	FromCache bool // true if we reused the cached body (304 or backend failure)
}

// cacheEntry holds HTTP cache metadata for the events endpoint.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// statusError is a non-2xx/304 response from the backend.
type statusError struct {
	StatusCode int
	Status     string
}

func (e *statusError) Error() string {
	return "backend: unexpected status " + e.Status
}

// Client fetches ride events from the WayMatcher backend with HTTP caching
// (ETag / Last-Modified), retries with exponential backoff, and a circuit
// breaker around the transport.
type Client struct {
	opts    Options
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a backend Client.
func NewClient(opts Options) *Client {
	if opts.CacheDir == "" {
		// Relative fallback so development runs without root permissions.
		opts.CacheDir = "./var/cache"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 200 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "waymatcher-backend",
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				appLog.Info("backend circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// FetchEvents fetches the ride event list. When the backend is unreachable
// or answers with an error and a cached body exists, the cached events are
// returned instead.
func (c *Client) FetchEvents(ctx context.Context) (FetchResult, error) {
	if c.opts.BaseURL == "" {
		return FetchResult{}, errors.New("backend: base URL is empty")
	}
	url := c.opts.BaseURL + EventsPath

	if err := os.MkdirAll(c.opts.CacheDir, 0o700); err != nil {
		return FetchResult{}, err
	}
	cachePath := c.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := loadCacheBody(cachePath)

	appLog.Info("backend fetch start", "url", redactURL(url))

	resp, err := c.do(ctx, url, meta)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("backend fetch failed, using cached body", err, "url", redactURL(url))
			return decodeResult(cachedBody, true)
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}
		res, err := decodeResult(body, false)
		if err != nil {
			return FetchResult{}, err
		}

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched events.
			appLog.Error("backend cache save failed", err, "url", redactURL(url))
		}

		appLog.Info("backend fetch success", "url", redactURL(url), "event_count", len(res.Events))
		return res, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("backend: received 304 Not Modified but no cached body available")
		}
		appLog.Info("backend fetch not modified; using cache", "url", redactURL(url))
		return decodeResult(cachedBody, true)

	default:
		serr := &statusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if len(cachedBody) > 0 {
			appLog.Error("backend fetch non-OK, using cached body", serr, "url", redactURL(url), "status", resp.StatusCode)
			return decodeResult(cachedBody, true)
		}
		return FetchResult{}, serr
	}
}

// do performs the conditional GET, retrying network errors and 5xx
// responses. A 5xx that survives all retries is returned as a response.
func (c *Client) do(ctx context.Context, url string, meta cacheEntry) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.opts.MaxRetries), ctx)

	var last *http.Response
	attempt := 0

	operation := func() error {
		attempt++
		if last != nil {
			last.Body.Close()
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			if c.opts.Token != "" {
				req.Header.Set("Authorization", "Bearer "+c.opts.Token)
			}
			if meta.ETag != "" {
				req.Header.Set("If-None-Match", meta.ETag)
			}
			if meta.LastModified != "" {
				req.Header.Set("If-Modified-Since", meta.LastModified)
			}

			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &statusError{StatusCode: r.StatusCode, Status: r.Status}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				last = resp
			}
			appLog.Debug("backend attempt failed", "attempt", attempt, "err", err)
			return err
		}
		last = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if last != nil {
			return last, nil
		}
		return nil, fmt.Errorf("backend: fetch %s: %w", redactURL(url), err)
	}
	return last, nil
}

func decodeResult(body []byte, fromCache bool) (FetchResult, error) {
	var events []model.RideEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return FetchResult{}, fmt.Errorf("backend: decode events: %w", err)
	}
	if events == nil {
		events = []model.RideEvent{}
	}
	return FetchResult{Events: events, FromCache: fromCache}, nil
}

func (c *Client) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(c.opts.CacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "events.json"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "events.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, so tokens in paths or query strings
// never reach the logs.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "backend://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
