// Package index looks up the external requirements of an extras graph on a
// PyPI-compatible JSON API.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/acheong08/pyextras/internal/logger"
	"github.com/acheong08/pyextras/internal/parser"
)

// DefaultBaseURL is the public PyPI
const DefaultBaseURL = "https://pypi.org"

// ErrNotFound is returned when the index has no such project
var ErrNotFound = errors.New("project not found on index")

// LogCallback is an optional function for forwarding log messages (e.g. to WebSocket).
type LogCallback func(message, level string)

// ProjectInfo is the subset of the PyPI JSON API response we read
type ProjectInfo struct {
	Info struct {
		Name          string   `json:"name"`
		Version       string   `json:"version"`
		ProvidesExtra []string `json:"provides_extra"`
		RequiresDist  []string `json:"requires_dist"`
	} `json:"info"`
}

// Client queries a PyPI JSON API
type Client struct {
	BaseURL     string
	Concurrency int
	Attempts    uint
	RetryDelay  time.Duration
	HTTPClient  *http.Client
	Logger      *zap.SugaredLogger
	logCb       LogCallback
}

// NewClient creates a new index client. An empty baseURL selects PyPI.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Concurrency: 8,
		Attempts:    3,
		RetryDelay:  500 * time.Millisecond,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Logger: logger.Nop(),
	}
}

// SetLogCallback sets an optional callback for forwarding log messages.
func (c *Client) SetLogCallback(cb LogCallback) {
	c.logCb = cb
}

// logMsg logs and optionally forwards via the log callback.
func (c *Client) logMsg(message, level string) {
	logger.Forward(c.Logger, message, level)
	if c.logCb != nil {
		c.logCb(message, level)
	}
}

// statusError is a non-200 response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.code)
	}
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.code, e.body)
}

// ProjectInfo fetches GET {base}/pypi/{name}/json. Rate limiting and server
// errors are retried; a 404 returns ErrNotFound.
func (c *Client) ProjectInfo(ctx context.Context, name string) (*ProjectInfo, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", c.BaseURL, parser.NormalizeName(name))
	attempts := c.Attempts
	if attempts == 0 {
		attempts = 1
	}

	info, err := retry.DoWithData(
		func() (*ProjectInfo, error) {
			return c.fetch(ctx, url)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logMsg(fmt.Sprintf("Retrying %s (attempt %d): %v", name, n+2, err), "warning")
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return info, nil
}

func (c *Client) fetch(ctx context.Context, url string) (*ProjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Unrecoverable(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &statusError{code: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, retry.Unrecoverable(&statusError{code: resp.StatusCode, body: string(body)})
	}

	var info ProjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to decode project info: %w", err))
	}
	return &info, nil
}

// extraMarkerRegex finds `extra == "name"` inside an environment marker
var extraMarkerRegex = regexp.MustCompile(`extra\s*==\s*["']([^"']+)["']`)

// ProvidedExtras returns the normalized extras a project declares, taken
// from provides_extra or, when absent, from the requires_dist markers.
func ProvidedExtras(info *ProjectInfo) []string {
	seen := make(map[string]bool)
	var extras []string
	add := func(name string) {
		name = parser.NormalizeExtra(name)
		if name != "" && !seen[name] {
			seen[name] = true
			extras = append(extras, name)
		}
	}

	if len(info.Info.ProvidesExtra) > 0 {
		for _, e := range info.Info.ProvidesExtra {
			add(e)
		}
	} else {
		for _, dist := range info.Info.RequiresDist {
			for _, m := range extraMarkerRegex.FindAllStringSubmatch(dist, -1) {
				add(m[1])
			}
		}
	}

	sort.Strings(extras)
	return extras
}
