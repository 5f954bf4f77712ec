package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	requestTimeout = 15 * time.Second
	maxBodySize    = 32 << 20 // 32 MB
	restPrefix     = "/rest/v1/"

	// defaultPageSize matches PostgREST's usual max-rows cap.
	defaultPageSize = 1000
)

// REST talks to a PostgREST endpoint such as a Supabase project.
type REST struct {
	baseURL  string
	key      string
	http     *http.Client
	probe    Probe
	pageSize int
}

// NewREST creates a client for the given project URL and API key.
func NewREST(baseURL, key string, probeTimeout time.Duration) *REST {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &REST{
		baseURL:  baseURL,
		key:      strings.TrimSpace(key),
		http:     &http.Client{},
		probe:    NewProbe(baseURL, "443", probeTimeout),
		pageSize: defaultPageSize,
	}
}

// WithDial replaces the dialer used by the reachability probe.
func (c *REST) WithDial(dial DialFunc) *REST {
	c.probe.Dial = dial
	return c
}

func (c *REST) Configured() bool {
	return c.baseURL != "" && c.key != ""
}

func (c *REST) Reachable(ctx context.Context) bool {
	return c.probe.Reachable(ctx)
}

// FetchTable reads every row of table, one id-ordered page at a time until
// a short page comes back.
func (c *REST) FetchTable(ctx context.Context, table string) ([]byte, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows := []json.RawMessage{}
	for offset := 0; ; offset += c.pageSize {
		q := url.Values{
			"select": {"*"},
			"order":  {"id.asc"},
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		data, err := c.do(ctx, http.MethodGet, table, q, nil)
		if err != nil {
			return nil, err
		}
		var page []json.RawMessage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("remote: decoding %s page at %d: %w", table, offset, err)
		}
		rows = append(rows, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	return json.Marshal(rows)
}

// Upsert posts rows with merge-duplicates resolution on id.
func (c *REST) Upsert(ctx context.Context, table string, columns []string, rows []byte) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if isEmptyArray(rows) {
		return nil
	}
	q := url.Values{"on_conflict": {"id"}}
	if len(columns) > 0 {
		q.Set("columns", strings.Join(columns, ","))
	}
	_, err := c.do(ctx, http.MethodPost, table, q, rows)
	return err
}

// Delete removes the row with the given id.
func (c *REST) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, table, url.Values{"id": {"eq." + id}}, nil)
	return err
}

// do performs an authenticated request and returns the response body.
func (c *REST) do(ctx context.Context, method, table string, query url.Values, body []byte) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	endpoint := c.baseURL + restPrefix + table + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, fmt.Errorf("remote: creating request: %w", err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "github.com/theirongolddev/opsdash/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	}

	//nolint:gosec // URL is built from the configured endpoint and a validated table name
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("remote: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote: %s %s: unexpected status %d: %s",
			method, table, resp.StatusCode, snippet(data))
	}
	return data, nil
}

func isEmptyArray(rows []byte) bool {
	s := strings.TrimSpace(string(rows))
	return s == "" || s == "[]" || s == "null"
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
