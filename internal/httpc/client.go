// Package httpc is the HTTP client the command line uses to talk to a
// running preview server.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultKeepAlive      = 30 * time.Second
)

// ErrNoFrame is returned by Frame when the server has not shown anything yet.
var ErrNoFrame = errors.New("httpc: no frame yet")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("httpc: status %d", e.Code)
	}
	return fmt.Sprintf("httpc: status %d: %s", e.Code, e.Message)
}

// Filter is one entry of the server's filter list.
type Filter struct {
	Name      string `json:"name"`
	Operation string `json:"operation,omitempty"`
	Index     int    `json:"index"`
}

// Filters is the server's filter list.
type Filters struct {
	Filters []Filter `json:"filters"`
	Current string   `json:"current"`
}

// Selection is the server's answer to a filter change.
type Selection struct {
	Filter string `json:"filter"`
	Index  int    `json:"index"`
}

// Client talks to one preview server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the server at base, e.g. http://localhost:8080.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DefaultConnectTimeout,
					KeepAlive: DefaultKeepAlive,
				}).DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Base returns the server URL.
func (c *Client) Base() string {
	return c.base
}

// Filters lists the offered filters and the current selection.
func (c *Client) Filters(ctx context.Context) (*Filters, error) {
	var out Filters
	if err := c.doJSON(ctx, http.MethodGet, "/api/filters", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetFilter selects the filter with the given raw name.
func (c *Client) SetFilter(ctx context.Context, name string) (*Selection, error) {
	var out Selection
	body := map[string]string{"filter": name}
	if err := c.doJSON(ctx, http.MethodPut, "/api/filter", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the server's counters as raw JSON.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Frame fetches the JPEG currently on screen.
func (c *Client) Frame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/frame.jpg", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, ErrNoFrame
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}
