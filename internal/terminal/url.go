package terminal

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is the terminal endpoint served by the agent service.
const DefaultPath = "/api/ws"

// BuildURL composes the WebSocket URL for host from the page origin. The
// scheme mirrors the origin's security level (https → wss, http → ws), host
// and port are inherited, and host is passed as the "host" query parameter
// when non-empty.
func BuildURL(origin, path, host string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""
	u.User = nil
	if host != "" {
		q := url.Values{}
		q.Set("host", host)
		u.RawQuery = q.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String(), nil
}

// LogsPath returns the log stream endpoint for host. The result is an
// unescaped path; BuildURL escapes it.
func LogsPath(host string) string {
	return "/api/ws/logs/" + host
}

// checkURL reports whether rawURL can be handed to a Dialer.
func checkURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty connection URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse connection URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported connection scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("connection URL %q has no host", rawURL)
	}
	return nil
}
