// Package postgrest is a minimal client for a PostgREST (Supabase) REST
// endpoint: read a whole table and upsert one row.
package postgrest

import (
	"bytes"
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

// DefaultPageSize matches PostgREST's usual max-rows setting.
const DefaultPageSize = 1000

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

var ErrMissingCredentials = errors.New("postgrest: base URL and API key are required")

// APIError is a non-2xx response. Body is kept verbatim.
type APIError struct {
	Method string
	Table  string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postgrest %s %s: status %d: %s", e.Method, e.Table, e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	PageSize int
}

// Client talks to {BaseURL}/rest/v1.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

func New(opts Options) *Client {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Fetch reads every row of table, paging with Range headers. The server may
// cap a page below the requested size (max-rows), so paging continues until
// the exact count from Content-Range is reached or an empty page comes back.
func (c *Client) Fetch(ctx context.Context, table string) ([]map[string]any, error) {
	var all []map[string]any
	for {
		offset := len(all)
		req, err := c.newRequest(ctx, http.MethodGet, table, url.Values{"select": {"*"}}, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+c.pageSize-1))
		req.Header.Set("Prefer", "count=exact")

		var page []map[string]any
		header, err := c.do(req, table, &page)
		if err != nil {
			var apiErr *APIError
			if offset > 0 && errors.As(err, &apiErr) && apiErr.Status == http.StatusRequestedRangeNotSatisfiable {
				return all, nil
			}
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 {
			return all, nil
		}
		cr := header.Get("Content-Range")
		if cr == "" && len(page) < c.pageSize {
			// no range support; a short page is the only end marker
			return all, nil
		}
		if total, ok := contentRangeTotal(cr); ok && len(all) >= total {
			return all, nil
		}
	}
}

// contentRangeTotal extracts the total from "0-999/2500". An unknown total
// ("0-999/*") reports false.
func contentRangeTotal(v string) (int, bool) {
	_, total, found := strings.Cut(v, "/")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Upsert posts rec with merge-duplicates resolution on onConflict and
// returns the stored representation.
func (c *Client) Upsert(ctx context.Context, table string, rec map[string]any, onConflict string) (map[string]any, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}

	query := url.Values{}
	if onConflict != "" {
		query.Set("on_conflict", onConflict)
	}
	req, err := c.newRequest(ctx, http.MethodPost, table, query, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	var rows []map[string]any
	if _, err := c.do(req, table, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("postgrest POST %s: empty representation", table)
	}
	return rows[0], nil
}

// Ping checks that the REST root answers with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, "", nil)
	return err
}

func (c *Client) Close() error { return nil }

func (c *Client) newRequest(ctx context.Context, method, table string, query url.Values, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" || strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingCredentials
	}
	u, err := url.Parse(c.baseURL + "/rest/v1/" + url.PathEscape(table))
	if err != nil {
		return nil, fmt.Errorf("postgrest: bad base URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, table string, out any) (http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Method: req.Method,
			Table:  table,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("postgrest %s %s: decode response: %w", req.Method, table, err)
	}
	return resp.Header, nil
}
