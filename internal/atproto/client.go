package atproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig configures the XRPC client.
type ClientConfig struct {
	BaseURL           string  // e.g. "https://bsky.social/xrpc"
	Identifier        string
	AppPassword       string
	RequestsPerSecond float64 // 0 disables pacing
	Timeout           time.Duration
}

// Client talks to a PDS over XRPC.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an XRPC client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://bsky.social/xrpc"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// CreateSession authenticates with the configured identifier and app password.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	if c.cfg.Identifier == "" || c.cfg.AppPassword == "" {
		return nil, ErrMissingCredentials
	}

	body := map[string]string{
		"identifier": c.cfg.Identifier,
		"password":   c.cfg.AppPassword,
	}
	var sess Session
	if err := c.do(ctx, http.MethodPost, "com.atproto.server.createSession", "", nil, body, &sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	slog.Info("bluesky session created", "did", sess.DID, "handle", sess.Handle)
	return &sess, nil
}

func (c *Client) do(ctx context.Context, method, nsid, token string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := c.cfg.BaseURL + "/" + nsid
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", nsid, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", nsid, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", nsid, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{NSID: nsid, Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", nsid, err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
