package remote

import (
	"context"
	"net"
	"net/url"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// DialFunc opens a connection for the reachability probe.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Probe checks reachability with a short TCP dial to the endpoint host.
type Probe struct {
	Addr    string
	Timeout time.Duration
	Dial    DialFunc
}

// NewProbe builds a probe for the host of rawURL, falling back to
// defaultPort when the URL carries none.
func NewProbe(rawURL, defaultPort string, timeout time.Duration) Probe {
	addr := ""
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		port := u.Port()
		if port == "" {
			port = defaultPort
			if u.Scheme == "http" {
				port = "80"
			}
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return Probe{Addr: addr, Timeout: timeout}
}

// Reachable reports whether a TCP connection to Addr succeeds in time.
func (p Probe) Reachable(ctx context.Context) bool {
	if p.Addr == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	dial := p.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
