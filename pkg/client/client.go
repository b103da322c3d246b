// Package client talks to a docdash server over HTTP and WebSocket. A Client
// serves as both the identity provider and the document store of a
// dashboard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"docdash/internal/dashboard"

	"github.com/gorilla/websocket"
)

const defaultTimeout = 15 * time.Second

var (
	_ dashboard.IdentityProvider = (*Client)(nil)
	_ dashboard.DocumentStore    = (*Client)(nil)
)

// APIError carries the status and message of a failed request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Dialer   *websocket.Dialer
	Sessions *SessionFile

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func New(baseURL string, sessions *SessionFile) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: defaultTimeout},
		Dialer:   websocket.DefaultDialer,
		Sessions: sessions,
		subs:     make(map[*subscription]struct{}),
	}
}

// token returns the persisted session token, or "" when signed out.
func (c *Client) token() string {
	rec, ok, err := c.Sessions.Load()
	if err != nil || !ok {
		return ""
	}
	return rec.Token
}

// do sends a request and decodes a JSON response into out when out is not
// nil. Non-2xx responses become *APIError with the body as message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// wsURL converts the base URL to its WebSocket equivalent.
func (c *Client) wsURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
