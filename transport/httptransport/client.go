// Package httptransport implements the HTTP push/pull protocol between a
// sync engine and a record server: a Client satisfying engine.RemoteClient
// and a Handler exposing a server-side RecordBackend over the same wire
// format. Request and response bodies are JSON, optionally gzip-compressed
// above a size threshold, with size limits enforced on both directions.
package httptransport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/engine"
	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
	"github.com/alvintu/swift-ui-aws-amplify/logging"
)

// Limits defines size and compression limits for request and response bodies.
type Limits struct {
	// MaxBodyBytes caps the on-wire (possibly compressed) body size.
	MaxBodyBytes int64

	// MaxDecompressedBytes caps the body size after gzip decompression.
	MaxDecompressedBytes int64

	// EnableGzip enables gzip compression of request bodies.
	EnableGzip bool

	// GzipMinBytes is the minimum payload size before gzip is applied.
	GzipMinBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes:         8 << 20,
		MaxDecompressedBytes: 64 << 20,
		EnableGzip:           true,
		GzipMinBytes:         1024,
	}
}

// Client talks to a remote record server over HTTP. It implements
// engine.RemoteClient.
type Client struct {
	baseURL string
	http    *http.Client
	limits  Limits
	logger  *logging.Logger
}

var _ engine.RemoteClient = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLimits sets the size and compression limits.
func WithLimits(l Limits) ClientOption {
	return func(c *Client) { c.limits = l }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client for the given base URL, e.g.
// "http://sync.example.com/v1".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limits:  DefaultLimits(),
		logger:  logging.Default().WithComponent(logging.Component("transport/http")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push uploads local changes. Per-record conflicts come back in the result.
func (c *Client) Push(ctx context.Context, changes []engine.Change) (*engine.PushResult, error) {
	if len(changes) == 0 {
		return &engine.PushResult{}, nil
	}

	req := pushRequest{Changes: make([]wireChange, len(changes))}
	for i, ch := range changes {
		req.Changes[i] = toWireChange(ch)
	}

	var resp pushResponse
	if err := c.post(ctx, syncErrors.OpPush, "/push", req, &resp); err != nil {
		return nil, err
	}

	result := &engine.PushResult{Accepted: resp.Accepted}
	for _, wc := range resp.Conflicts {
		result.Conflicts = append(result.Conflicts, fromWireConflict(wc))
	}

	c.logger.Debug("push completed",
		"changes", len(changes),
		"accepted", len(result.Accepted),
		"conflicts", len(result.Conflicts),
	)
	return result, nil
}

// Pull fetches up to limit records after the given cursor. A nil cursor
// requests a base query.
func (c *Client) Pull(ctx context.Context, since cursor.Cursor, limit int) (*engine.Page, error) {
	req := pullRequest{Limit: limit}
	if since != nil {
		wc, err := cursor.MarshalWire(since)
		if err != nil {
			return nil, syncErrors.NewWithComponent(syncErrors.OpPull, "transport", fmt.Errorf("encoding cursor: %w", err))
		}
		req.Since = wc
	}

	var resp pullResponse
	if err := c.post(ctx, syncErrors.OpPull, "/pull", req, &resp); err != nil {
		return nil, err
	}

	page := &engine.Page{HasMore: resp.HasMore}
	for _, wr := range resp.Records {
		page.Records = append(page.Records, fromWireRecord(wr))
	}
	if resp.Next != nil {
		next, err := cursor.UnmarshalWire(resp.Next)
		if err != nil {
			return nil, syncErrors.NewWithComponent(syncErrors.OpPull, "transport", fmt.Errorf("decoding cursor: %w", err))
		}
		page.Next = next
	}

	c.logger.Debug("pull completed",
		"records", len(page.Records),
		"has_more", page.HasMore,
	)
	return page, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post sends a JSON request body and decodes a JSON response, compressing
// the request when it exceeds the gzip threshold.
func (c *Client) post(ctx context.Context, op syncErrors.Operation, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return syncErrors.NewWithComponent(op, "transport", fmt.Errorf("marshaling request: %w", err))
	}

	body, encoding, err := c.compress(payload)
	if err != nil {
		return syncErrors.NewWithComponent(op, "transport", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return syncErrors.NewWithComponent(op, "transport", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return syncErrors.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("server error (status %d): %s", resp.StatusCode, msg)
		if resp.StatusCode >= http.StatusInternalServerError {
			return syncErrors.NewNetworkError(op, cause)
		}
		return syncErrors.NewWithComponent(op, "transport", cause)
	}

	reader, cleanup, err := newSafeResponseReader(resp, c.limits)
	if err != nil {
		return syncErrors.NewWithComponent(op, "transport", err)
	}
	defer cleanup()

	if err := json.NewDecoder(reader).Decode(respBody); err != nil {
		return syncErrors.NewWithComponent(op, "transport", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// compress gzips the payload when enabled and above the threshold. It
// returns the request body and the Content-Encoding value to send.
func (c *Client) compress(payload []byte) (io.Reader, string, error) {
	if !c.limits.EnableGzip || len(payload) < c.limits.GzipMinBytes {
		return bytes.NewReader(payload), "", nil
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return nil, "", fmt.Errorf("compressing request: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing gzip writer: %w", err)
	}
	return &buf, "gzip", nil
}
