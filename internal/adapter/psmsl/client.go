// Package psmsl downloads monthly tide-gauge records from the Permanent
// Service for Mean Sea Level.
package psmsl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
)

// DefaultBaseURL is the PSMSL data download root.
const DefaultBaseURL = "https://psmsl.org/data/obtaining"

// Client fetches station files over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a PSMSL client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// StationURL returns the monthly data file of a station, e.g.
// <base>/met.monthly.data/572.metdata.
func (c *Client) StationURL(st sealevel.Station) string {
	ds := st.Dataset
	if ds == "" {
		ds = "rlr"
	}
	return fmt.Sprintf("%s/%s.monthly.data/%d.%sdata", c.baseURL, ds, st.ID, ds)
}

// Fetch downloads and parses the station's monthly record. A station the
// service does not know is reported as domain.ErrMissingInput.
func (c *Client) Fetch(ctx context.Context, st sealevel.Station) ([]sealevel.Record, error) {
	u := c.StationURL(st)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("psmsl request %s: %w", st.Name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: psmsl station %s (%d)", domain.ErrMissingInput, st.Name, st.ID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("psmsl error: status %d: %s", resp.StatusCode, body)
	}

	recs, err := sealevel.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", st.Name, err)
	}
	c.logger.Debug("psmsl station fetched", "station", st.Name, "records", len(recs), "url", u)
	return recs, nil
}
