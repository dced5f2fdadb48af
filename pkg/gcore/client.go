// Package gcore is a minimal client for the statistics endpoints of the
// G-Core DNS API.
package gcore

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
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// maxMessageRunes caps how much of a raw failure body ends up in an error.
const maxMessageRunes = 200

// Zone is a DNS zone managed by the account.
type Zone struct {
	Name string `json:"name"`
}

// ZoneList is the decoded response of GET /zones.
type ZoneList struct {
	TotalAmount int    `json:"total_amount"`
	Zones       []Zone `json:"zones"`
}

// Window is the reporting interval [From, To) sent as unix seconds.
type Window struct {
	From time.Time
	To   time.Time
}

// Client issues authenticated GET requests against the G-Core DNS API.
// It performs no retries.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The caller is
// responsible for its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client for baseURL (e.g. https://dnsapi.gcorelabs.com/v2).
// timeout bounds every request.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListZones fetches the first page of zones with the given page size.
func (c *Client) ListZones(ctx context.Context, limit int) (*ZoneList, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		TotalAmount int     `json:"total_amount"`
		Zones       *[]Zone `json:"zones"`
	}
	if err := c.get(ctx, EndpointZones, "", "/zones", q, &body); err != nil {
		return nil, err
	}
	if body.Zones == nil {
		return nil, &RequestError{Endpoint: EndpointZones, Kind: ErrDecode, Err: fmt.Errorf("missing %q field", "zones")}
	}
	return &ZoneList{TotalAmount: body.TotalAmount, Zones: *body.Zones}, nil
}

// ZoneStatistic returns the number of requests served for zone within w.
func (c *Client) ZoneStatistic(ctx context.Context, zone string, w Window) (uint64, error) {
	return c.statistic(ctx, EndpointZoneStats, zone, "/zones/"+url.PathEscape(zone)+"/statistics", w)
}

// AllZonesStatistic returns the number of requests served for all zones within w.
func (c *Client) AllZonesStatistic(ctx context.Context, w Window) (uint64, error) {
	return c.statistic(ctx, EndpointAllZonesStats, "", "/zones/all/statistics", w)
}

func (c *Client) statistic(ctx context.Context, endpoint, zone, path string, w Window) (uint64, error) {
	q := url.Values{}
	q.Set("granularity", "1h")
	q.Set("from", strconv.FormatInt(w.From.Unix(), 10))
	q.Set("to", strconv.FormatInt(w.To.Unix(), 10))

	var body struct {
		Total *uint64 `json:"total"`
	}
	if err := c.get(ctx, endpoint, zone, path, q, &body); err != nil {
		return 0, err
	}
	if body.Total == nil {
		return 0, &RequestError{Endpoint: endpoint, Zone: zone, Kind: ErrDecode, Err: fmt.Errorf("missing %q field", "total")}
	}
	return *body.Total, nil
}

// get performs one request and decodes a 2xx JSON body into out.
func (c *Client) get(ctx context.Context, endpoint, zone, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Zone: zone, Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Authorization", "APIKey "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Zone: zone, Kind: ErrNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &RequestError{Endpoint: endpoint, Zone: zone, Kind: ErrNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Endpoint:   endpoint,
			Zone:       zone,
			StatusCode: resp.StatusCode,
			Kind:       ErrStatus,
			Err:        apiMessage(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Endpoint: endpoint, Zone: zone, Kind: ErrDecode, Err: err}
	}
	return nil
}

// apiMessage extracts the "error" field G-Core puts in failure bodies, falling
// back to a truncated raw body.
func apiMessage(body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return errors.New(e.Error)
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	if r := []rune(s); len(r) > maxMessageRunes {
		s = string(r[:maxMessageRunes]) + "..."
	}
	return errors.New(s)
}
