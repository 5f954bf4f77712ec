// Package remote provides clients for the remote backing store that mirrors
// the entity collections: a PostgREST (Supabase) HTTP backend and a direct
// Postgres backend.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/theirongolddev/opsdash/internal/transform"
)

var (
	// ErrNotConfigured indicates no remote endpoint or key is set.
	ErrNotConfigured = errors.New("remote: not configured")
	// ErrUnauthorized indicates the access key was rejected.
	ErrUnauthorized = errors.New("remote: unauthorized (access key invalid)")
	// ErrRateLimited indicates the remote asked us to back off.
	ErrRateLimited = errors.New("remote: rate limited")
	// ErrUnknownTable indicates a table outside the entity schema.
	ErrUnknownTable = errors.New("remote: unknown table")
)

// Client is the remote store contract used by the sync orchestrator.
type Client interface {
	// Configured reports whether an endpoint and key are present.
	Configured() bool
	// Reachable reports whether the endpoint answers right now.
	Reachable(ctx context.Context) bool
	// FetchTable returns every row of a table as a JSON array.
	FetchTable(ctx context.Context, table string) ([]byte, error)
	// Upsert writes a JSON array of rows, last writer wins on id.
	Upsert(ctx context.Context, table string, columns []string, rows []byte) error
	// Delete removes one row by id.
	Delete(ctx context.Context, table, id string) error
}

// Available reports whether c is configured and reachable. It is evaluated
// fresh on every call.
func Available(ctx context.Context, c Client) bool {
	return c != nil && c.Configured() && c.Reachable(ctx)
}

// Config selects and parameterizes a backend.
type Config struct {
	URL          string
	Key          string
	ProbeTimeout time.Duration
}

// Configured reports whether both URL and key are set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Key) != ""
}

// New returns the backend matching the URL scheme, or a disabled client
// when the config is incomplete.
func New(cfg Config) (Client, error) {
	if !cfg.Configured() {
		return Disabled{}, nil
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("remote: parsing url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return NewREST(cfg.URL, cfg.Key, cfg.ProbeTimeout), nil
	case "postgres", "postgresql":
		pg, err := NewPostgres(cfg.URL, cfg.Key, cfg.ProbeTimeout)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	return nil, fmt.Errorf("remote: unsupported url scheme %q", u.Scheme)
}

// Disabled is the client used in local-only mode.
type Disabled struct{}

func (Disabled) Configured() bool               { return false }
func (Disabled) Reachable(context.Context) bool { return false }

func (Disabled) Delete(context.Context, string, string) error {
	return ErrNotConfigured
}

func (Disabled) FetchTable(context.Context, string) ([]byte, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Upsert(context.Context, string, []string, []byte) error {
	return ErrNotConfigured
}

func checkTable(table string) error {
	for _, t := range transform.Tables {
		if t.Name == table {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTable, table)
}
