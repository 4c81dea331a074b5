// Package apiclient talks to the agent service's REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Agent mirrors the service's agent status.
type Agent struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"display_name"`
	Vulnerabilities map[string]bool `json:"vulnerabilities"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the service at baseURL. A nil httpClient uses a
// client with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var body struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &body); err != nil {
		return nil, err
	}
	return body.Agents, nil
}

func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var a Agent
	if err := c.do(ctx, http.MethodGet, "/api/agents/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ToggleVulnerability enables or disables a flag and returns the agent's
// updated flags.
func (c *Client) ToggleVulnerability(ctx context.Context, id, vuln string, enable bool) (map[string]bool, error) {
	action := "disable"
	if enable {
		action = "enable"
	}
	path := fmt.Sprintf("/api/agents/%s/vulnerabilities/%s/%s", url.PathEscape(id), url.PathEscape(vuln), action)
	var body struct {
		Vulnerabilities map[string]bool `json:"vulnerabilities"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Vulnerabilities, nil
}

// Exec runs an allow-listed command through the REST API.
func (c *Client) Exec(ctx context.Context, id, command string) (string, error) {
	var body struct {
		Output string `json:"output"`
	}
	req := map[string]string{"command": command}
	if err := c.do(ctx, http.MethodPost, "/api/agents/"+url.PathEscape(id)+"/exec", req, &body); err != nil {
		return "", err
	}
	return body.Output, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&detail) == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
