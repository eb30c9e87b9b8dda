package connguard

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Probe checks and restores connectivity to an external dependency.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: implementations should return promptly once ctx is done.
//   - Errors: none; an unreachable dependency reports false.
type Probe interface {
	// IsReachable performs a cheap reachability check.
	IsReachable(ctx context.Context) bool

	// Reconnect attempts to re-establish connectivity and reports success.
	Reconnect(ctx context.Context) bool
}

// ProbeFuncs adapts plain functions to the Probe interface.
type ProbeFuncs struct {
	// ReachableFunc implements IsReachable. Nil reports unreachable.
	ReachableFunc func(ctx context.Context) bool

	// ReconnectFunc implements Reconnect. Nil falls back to ReachableFunc.
	ReconnectFunc func(ctx context.Context) bool
}

// IsReachable calls ReachableFunc.
func (p ProbeFuncs) IsReachable(ctx context.Context) bool {
	if p.ReachableFunc == nil {
		return false
	}
	return p.ReachableFunc(ctx)
}

// Reconnect calls ReconnectFunc.
func (p ProbeFuncs) Reconnect(ctx context.Context) bool {
	if p.ReconnectFunc == nil {
		return p.IsReachable(ctx)
	}
	return p.ReconnectFunc(ctx)
}

// AlwaysReachable returns a probe for dependencies that are always present,
// such as an in-process store.
func AlwaysReachable() Probe {
	return ProbeFuncs{
		ReachableFunc: func(context.Context) bool { return true },
	}
}

// HTTPProbe checks a dependency by sending a HEAD request to URL.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe creates an HTTP probe. A nil client uses a client with a
// five second timeout.
func NewHTTPProbe(url string, client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPProbe{url: url, client: client}
}

// IsReachable reports whether the URL answered with a status below 500.
func (p *HTTPProbe) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// Reconnect drops pooled connections and checks the URL again.
func (p *HTTPProbe) Reconnect(ctx context.Context) bool {
	p.client.CloseIdleConnections()
	return p.IsReachable(ctx)
}

// DialProbe checks a dependency by opening a network connection.
type DialProbe struct {
	network string
	address string
	dialer  net.Dialer
}

// NewDialProbe creates a dial probe. network defaults to "tcp".
func NewDialProbe(network, address string) *DialProbe {
	if network == "" {
		network = "tcp"
	}
	return &DialProbe{network: network, address: address}
}

// IsReachable reports whether a connection could be opened.
func (p *DialProbe) IsReachable(ctx context.Context) bool {
	conn, err := p.dialer.DialContext(ctx, p.network, p.address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Reconnect dials again. Dial probes hold no connection state.
func (p *DialProbe) Reconnect(ctx context.Context) bool {
	return p.IsReachable(ctx)
}
