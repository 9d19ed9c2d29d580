// Package registry retrieves missing person posters from the Extraviados MX
// API, following pagination until the listing is exhausted.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/logutil"
	"github.com/extraviadosmx/fbpublisher/internal/mpp"
)

const (
	listPath = "/api/v1/mpps/"

	// RequestTimeout bounds each listing request.
	RequestTimeout = 120 * time.Second
)

// ErrPageLimit is returned when the listing has more pages than Config.MaxPages.
var ErrPageLimit = errors.New("page limit reached before the listing ended")

// Config configures a Client. Zero values select the defaults.
type Config struct {
	// BaseURL is the registry origin, https://extraviados.mx by default.
	BaseURL    string
	HTTPClient *http.Client
	// MaxPages caps how many pages FetchRecords follows. Zero means no cap.
	MaxPages int
}

// Filter selects posters by their last update and, optionally, their state.
type Filter struct {
	UpdatedAfter  time.Time
	UpdatedBefore time.Time
	// DateOnly sends the bounds as YYYY-MM-DD. It is off by default: the
	// bounds go out as RFC 3339 timestamps, because a date-only filter would
	// widen a minutes-long window to whole days.
	DateOnly bool
	// State limits results to one po_state code when non-empty.
	State string
}

// Client fetches poster records from the registry listing endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxPages   int
}

// New constructs a registry client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = mpp.DefaultSiteURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, maxPages: cfg.MaxPages}
}

// BaseURL returns the registry origin the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ListURL builds the first listing URL for f.
func (c *Client) ListURL(f Filter) string {
	layout := time.RFC3339
	if f.DateOnly {
		layout = time.DateOnly
	}
	params := url.Values{}
	params.Set("updated_at_after", f.UpdatedAfter.Format(layout))
	params.Set("updated_at_before", f.UpdatedBefore.Format(layout))
	if state := strings.TrimSpace(f.State); state != "" {
		params.Set("po_state", state)
	}
	return c.baseURL + listPath + "?" + params.Encode()
}

// FetchRecords returns every record matching f in the order the registry
// lists them. Pages are fetched one after another by following each page's
// next link verbatim.
func (c *Client) FetchRecords(ctx context.Context, f Filter) ([]mpp.Record, error) {
	pageURL := c.ListURL(f)
	var records []mpp.Record
	for pages := 1; ; pages++ {
		if c.maxPages > 0 && pages > c.maxPages {
			return nil, fmt.Errorf("fetch %s: %w (%d)", pageURL, ErrPageLimit, c.maxPages)
		}

		logutil.Debugf("fetching registry page %d: %s", pages, pageURL)
		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Results...)
		logutil.Debugf("registry page %d: %d records (%d total reported)", pages, len(page.Results), page.Count)

		if page.Next == nil {
			return records, nil
		}
		pageURL = *page.Next
	}
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (mpp.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return mpp.Page{}, TransportError{URL: pageURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mpp.Page{}, TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mpp.Page{}, TransportError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mpp.Page{}, TransportError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return mpp.Page{}, APIPayloadError{URL: pageURL, Err: err}
	}

	page, err := mpp.ParsePage(raw)
	if err != nil {
		return mpp.Page{}, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	return page, nil
}
