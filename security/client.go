package security

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ClientConfig configures NewClient. AllowPrivateIPs should stay false for
// outbound public-internet fetches (PublicKnowledge) and true for the
// Sandbox's http.request tool, which legitimately targets in-cluster
// service IPs; both share the same bounded-redirect, DNS-rebinding-safe
// dial, and content-size-cap plumbing regardless.
type ClientConfig struct {
	Timeout         time.Duration
	MaxRedirects    int
	AllowPrivateIPs bool
}

// NewClient builds an *http.Client whose DialContext re-resolves and
// validates every connection target (defeating DNS-rebinding) and whose
// CheckRedirect re-validates each hop, bounded to MaxRedirects.
func NewClient(cfg ClientConfig) *http.Client {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		if !cfg.AllowPrivateIPs {
			for _, ipAddr := range ips {
				if IsPrivateIP(ipAddr.IP) {
					return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
				}
			}
		}

		var lastErr error
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP: %w", lastErr)
	}

	transport := &http.Transport{
		DialContext:           safeDialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("too many redirects (max %d)", cfg.MaxRedirects)
			}
			if !cfg.AllowPrivateIPs {
				if ip := net.ParseIP(req.URL.Hostname()); ip != nil && IsPrivateIP(ip) {
					return fmt.Errorf("redirect to private IP blocked")
				}
			}
			return nil
		},
	}
}

// ReadCapped reads at most maxBytes+1 from r, returning an error if the
// body exceeds maxBytes.
func ReadCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", maxBytes)
	}
	return body, nil
}
