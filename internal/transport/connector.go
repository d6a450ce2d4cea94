package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ConnectorConfig describes how to reach the model
type ConnectorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Connect returns the transport matching the URL scheme
func Connect(cfg ConnectorConfig) (Transport, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Host == "" {
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("Invalid NOX_LLM_URL (no host): %s", cfg.URL), Cause: err}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPTransport(cfg.URL, cfg.APIKey, cfg.Timeout), nil
	case "ws", "wss":
		return NewWebSocketTransport(cfg.URL, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}
}

// Probe checks that a TCP connection to the endpoint host can be opened
func Probe(ctx context.Context, rawURL string, timeout time.Duration) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return &Error{Kind: KindConnection, Message: fmt.Sprintf("Invalid NOX_LLM_URL (no host): %s", rawURL), Cause: err}
	}

	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &Error{Kind: KindConnection, Message: fmt.Sprintf("Unable to connect to Nox at %s", addr), Cause: err}
	}
	return conn.Close()
}
