// Package gateway is the typed client for the print backend's REST surface.
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
	"strings"
	"time"

	"atpkiosk/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerRequestID   = "X-Request-ID"
	headerIdempotency = "Idempotency-Key"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	AuthToken  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks JSON over HTTP to the print backend. It never retries.
type Client struct {
	baseURL   string
	timeout   time.Duration
	authToken string
	http      *http.Client
	logger    *zap.Logger
	newID     func() string
}

// NewClient builds a Client. Timeout bounds JSON round-trips only; document
// transfers are bounded by the caller's context.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   timeout,
		authToken: opts.AuthToken,
		http:      httpClient,
		logger:    logger,
		newID:     func() string { return uuid.New().String() },
	}
}

func (c *Client) endpoint(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return c.baseURL + fmt.Sprintf(format, escaped...)
}

// apiError is the error envelope the backend uses.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, c.newID())
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx body into out.
// fallback is the user message used when the backend gives none.
func (c *Client) doJSON(ctx context.Context, method, target string, in, out any, fallback string, header http.Header) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, req, err)
	}
	defer resp.Body.Close()

	return c.decode(req, resp, out, fallback)
}

// transportError classifies a failed round-trip. A caller that gave up
// (stage left) yields Cancelled; everything else is a network failure.
func (c *Client) transportError(ctx context.Context, req *http.Request, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return utils.NewError(utils.KindCancelled, "Request cancelled", err)
	}
	c.logger.Warn("backend unreachable",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Error(err))
	return utils.NewError(utils.KindNetworkError, "Network error - no response received", err)
}

func (c *Client) decode(req *http.Request, resp *http.Response, out any, fallback string) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NewError(utils.KindNetworkError, "Network error - response interrupted", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(req, resp.StatusCode, raw, fallback)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("malformed backend response",
			zap.String("url", req.URL.Redacted()),
			zap.Error(err))
		return utils.NewError(utils.KindServerRejected, fallback, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func (c *Client) statusError(req *http.Request, status int, raw []byte, fallback string) error {
	var envelope apiError
	_ = json.Unmarshal(raw, &envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	if message == "" {
		message = fallback
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", status),
		zap.String("message", message),
	}
	cause := fmt.Errorf("backend responded %d", status)

	switch {
	case status == http.StatusNotFound:
		c.logger.Warn("resource not found", fields...)
		return utils.NewError(utils.KindNotFound, message, cause)
	case status == http.StatusUnauthorized:
		c.logger.Warn("backend rejected credentials", fields...)
	case status >= 500:
		c.logger.Error("backend server error", fields...)
	default:
		c.logger.Warn("backend rejected request", fields...)
	}
	return utils.NewError(utils.KindServerRejected, message, cause)
}

// Ping reports whether the backend answers at all. Any HTTP response counts;
// only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return utils.NewError(utils.KindNetworkError, "Network error - no response received", err)
	}
	resp.Body.Close()
	return nil
}
