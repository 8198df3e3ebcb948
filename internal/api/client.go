// Package api talks to the platform HTTP APIs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/config"
	"herokuPlugins/internal/logging"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AcceptHeader     = "application/vnd.heroku+json; version=3"
	DefaultUserAgent = "hkp"
	defaultTimeout   = 30 * time.Second
)

// Client sends authenticated requests. BaseURL points at the main API; other
// hosts are reached with RequestOptions.Host and the same scheme.
type Client struct {
	BaseURL    string
	Token      string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// RequestOptions describes a single request.
type RequestOptions struct {
	// Host overrides the BaseURL host, e.g. "telex.heroku.com".
	Host    string
	Path    string
	Method  string
	Headers map[string]string
	Body    any
}

type errorBody struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewClient creates a Client for the configured API host.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    "https://" + cfg.APIHost,
		Token:      cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	}
}

// Get decodes the JSON response of a GET into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, RequestOptions{Path: path}, out)
}

// Delete sends a DELETE and discards the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Request(ctx, RequestOptions{Method: http.MethodDelete, Path: path}, nil)
}

// Request sends opts and decodes a JSON response into out when out is not nil.
// Non-2xx responses become an APIError carrying the status code.
func (c *Client) Request(ctx context.Context, opts RequestOptions, out any) error {
	logger := logging.OrNop(c.Logger)

	target, err := c.url(opts)
	if err != nil {
		return err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("error preparing request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("Request-Id", requestID)
	req.Header.Set("User-Agent", c.userAgent())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("error making request to %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	logger.Debug("API request",
		zap.String("method", method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.NewAPI(resp.StatusCode, errorMessage(data, resp.Status))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error parsing response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) url(opts RequestOptions) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", apperror.New(apperror.ConfigError, fmt.Sprintf("invalid API base URL %q", c.BaseURL), err)
	}
	host := base.Host
	if opts.Host != "" {
		host = opts.Host
	}
	path := opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base.Scheme + "://" + host + path, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

// errorMessage prefers the API's JSON message over the raw body.
func errorMessage(data []byte, status string) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return status
}
