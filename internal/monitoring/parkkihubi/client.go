// Package parkkihubi provides a client for the Parkkihubi monitoring REST API.
//
// Fetch operations stream every page of a paginated resource to a callback,
// strictly in arrival order; DownloadCSV performs one POST and saves the
// returned CSV under the server-suggested name. The client applies no retry,
// backoff or timeout policy of its own; recovery belongs to callers.
package parkkihubi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL points at a locally running Parkkihubi instance.
	DefaultBaseURL = "http://localhost:8000"

	regionsPath        = "/monitoring/v1/region/"
	regionStatsPath    = "/monitoring/v1/region_statistics/"
	validParkingsPath  = "/monitoring/v1/valid_parking/"
	exportFiltersPath  = "/monitoring/v1/export/filters/"
	exportDownloadPath = "/monitoring/v1/export/download/"

	// SuggestedFilenameHeader names the CSV file on export downloads.
	SuggestedFilenameHeader = "X-Suggested-Filename"
)

// ErrRequestFailed is the one failure kind the client reports: network
// errors, unexpected statuses and undecodable responses all wrap it and are
// not distinguished further.
var ErrRequestFailed = errors.New("parkkihubi: request failed")

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the monitoring client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIToken, when set, is attached to every request by the transport.
	APIToken string

	// HTTPClient overrides the default transport stack. When nil, a plain
	// http.Client is built with the token and optional debug transports.
	HTTPClient HTTPDoer

	// Saver receives downloaded CSV bodies. Defaults to a DirSaver under
	// DownloadDir.
	Saver FileSaver

	// DownloadDir is the default saver's directory (default "exports").
	DownloadDir string

	// Debug dumps requests and responses to the logger at trace level.
	Debug bool

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Parkkihubi monitoring API client.
//
// The base URL may be swapped at runtime with SetBaseURL. Every operation
// reads it once when it starts, so chains already in flight keep the URL
// they started with. Independent operations may run concurrently.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	httpClient HTTPDoer
	saver      FileSaver
	logger     zerolog.Logger
}

// NewClient creates a new monitoring client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(cfg)}
	}

	saver := cfg.Saver
	if saver == nil {
		dir := cfg.DownloadDir
		if dir == "" {
			dir = "exports"
		}
		saver = NewDirSaver(dir)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		saver:      saver,
		logger:     cfg.Logger,
	}
}

// SetBaseURL replaces the base URL used by subsequent operations.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimSuffix(u, "/")
	c.mu.Unlock()
}

// BaseURL returns the base URL currently in effect.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// FetchRegions streams every page of the region list to onPage.
func (c *Client) FetchRegions(ctx context.Context, onPage func([]Region)) error {
	return fetchPages(ctx, c, c.BaseURL()+regionsPath, onPage)
}

// FetchRegionStatistics streams region statistics pages to onPage. A
// non-zero at is sent as an ISO-8601 time parameter; the zero value asks
// for the server's current statistics.
func (c *Client) FetchRegionStatistics(ctx context.Context, at time.Time, onPage func([]RegionStatistics)) error {
	return fetchPages(ctx, c, timeURL(c.BaseURL()+regionStatsPath, at), onPage)
}

// FetchValidParkings streams pages of parkings valid at the given instant,
// with the same time-parameter semantics as FetchRegionStatistics.
func (c *Client) FetchValidParkings(ctx context.Context, at time.Time, onPage func([]ValidParking)) error {
	return fetchPages(ctx, c, timeURL(c.BaseURL()+validParkingsPath, at), onPage)
}

// FetchExportFilters streams the export filter vocabulary to onPage.
func (c *Client) FetchExportFilters(ctx context.Context, onPage func([]ExportFilters)) error {
	return fetchPages(ctx, c, c.BaseURL()+exportFiltersPath, onPage)
}

// DownloadCSV POSTs the selection to the export endpoint and saves the
// returned file under the name the server suggests. The save happens
// exactly once per successful call; a failed call saves nothing.
func (c *Client) DownloadCSV(ctx context.Context, sel ExportSelection) (*ExportDownload, error) {
	body, err := json.Marshal(sel.wire())
	if err != nil {
		return nil, fmt.Errorf("%w: encode selection: %v", ErrRequestFailed, err)
	}

	u := c.BaseURL() + exportDownloadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", ErrRequestFailed, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: POST %s: unexpected status %d", ErrRequestFailed, u, resp.StatusCode)
	}

	filename := resp.Header.Get(SuggestedFilenameHeader)
	if filename == "" {
		filename = sel.fallbackFilename()
	}

	path, n, err := c.saver.Save(filename, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("save export %q: %w", filename, err)
	}

	c.logger.Info().
		Str("filename", filename).
		Str("path", path).
		Int64("bytes", n).
		Msg("export downloaded")

	return &ExportDownload{Filename: filename, Path: path, Bytes: n}, nil
}

// page is the envelope every paginated monitoring resource uses. An empty
// next URL ends the chain.
type page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

// fetchPages walks a pagination chain starting at rawURL, invoking onPage
// once per page as it arrives. Requests are strictly sequential; the first
// failure ends the chain, and pages already delivered stay delivered.
func fetchPages[T any](ctx context.Context, c *Client, rawURL string, onPage func([]T)) error {
	next := rawURL
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, http.NoBody)
		if err != nil {
			return fmt.Errorf("%w: create request for %s: %v", ErrRequestFailed, next, err)
		}
		req.Header.Set("Accept", "application/json")

		pg, err := fetchPage[T](c, req)
		if err != nil {
			return err
		}

		c.logger.Debug().
			Str("url", next).
			Int("results", len(pg.Results)).
			Msg("page received")
		onPage(pg.Results)

		next, err = nextURL(req.URL, pg.Next)
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchPage issues one request of a chain and decodes its envelope.
func fetchPage[T any](c *Client, req *http.Request) (page[T], error) {
	var pg page[T]

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pg, fmt.Errorf("%w: GET %s: %v", ErrRequestFailed, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pg, fmt.Errorf("%w: GET %s: unexpected status %d", ErrRequestFailed, req.URL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&pg); err != nil {
		return pg, fmt.Errorf("%w: decode page from %s: %v", ErrRequestFailed, req.URL, err)
	}

	return pg, nil
}

// nextURL resolves a next pointer against the page that returned it.
// Absolute pointers are used as-is; the pointer is otherwise not inspected.
func nextURL(current *url.URL, next string) (string, error) {
	if next == "" {
		return "", nil
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("%w: invalid next page url %q: %v", ErrRequestFailed, next, err)
	}
	return current.ResolveReference(ref).String(), nil
}

// timeURL appends the optional ISO-8601 time parameter.
func timeURL(base string, at time.Time) string {
	if at.IsZero() {
		return base
	}
	q := url.Values{}
	q.Set("time", at.Format(time.RFC3339))
	return base + "?" + q.Encode()
}
