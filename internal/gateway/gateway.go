// Package gateway is the single chokepoint for calls to the remote backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single call.
	DefaultTimeout = 15 * time.Second
	snippetLimit   = 200
	maxBodyBytes   = 4 << 20
)

// Envelope is the discriminator shared by every backend response.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Err returns an *ApplicationError when the envelope reports failure.
func (e Envelope) Err(path string) error {
	if e.OK {
		return nil
	}
	return &ApplicationError{Path: path, Message: e.Message}
}

// Client posts logical backend calls to a configured relay endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithLogger attaches a logger for call tracing.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New returns a Client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call posts body as JSON to path and decodes the JSON reply into out.
//
// It fails with *NetworkError on transport failure and *ProtocolError when the
// reply is not a JSON object carrying an "ok" field. An {ok:false} reply is
// decoded like any other; callers branch on the envelope.
func (c *Client) Call(ctx context.Context, path string, body any, query map[string]string, out any) error {
	target, err := BuildURL(c.endpoint, path, query)
	if err != nil {
		return err
	}
	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("backend call failed", zap.String("path", path), zap.Error(err))
		return &NetworkError{Path: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Path: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	c.log.Debug("backend call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	return decodeEnvelope(path, raw, out)
}

func decodeEnvelope(path string, raw []byte, out any) error {
	var probe struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return &ProtocolError{Path: path, Snippet: snippet(raw), Err: errors.New("invalid JSON response")}
	}
	if probe.OK == nil {
		return &ProtocolError{Path: path, Snippet: snippet(raw), Err: errors.New("missing ok field")}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Path: path, Snippet: snippet(raw), Err: fmt.Errorf("unexpected response shape: %w", err)}
	}
	return nil
}

// BuildURL resolves endpoint and adds path plus every query entry, empty
// values included.
// An endpoint without a scheme is treated as https.
func BuildURL(endpoint, path string, query map[string]string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", ErrNoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		u, err = url.Parse("https://" + strings.TrimLeft(endpoint, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid api endpoint %q: %w", endpoint, err)
		}
	}
	values := u.Query()
	values.Set("path", path)
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, query[k])
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func snippet(raw []byte) string {
	if utf8.RuneCount(raw) <= snippetLimit {
		return string(raw)
	}
	runes := []rune(string(raw))
	return string(runes[:snippetLimit])
}
