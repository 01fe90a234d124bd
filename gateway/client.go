// Package gateway is the HTTP/JSON client for the content-pipeline
// backend: job, file, and asset CRUD plus the S3 folder-download URL
// issuance the console depends on.
package gateway

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

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/internal/httpclient"
	"github.com/toppsdigital/cardsync/logger"
)

// Client talks to the content-pipeline gateway. All methods take a
// context and are safe for concurrent use; a shared rate limiter keeps
// overlapping polling loops from flooding the backend.
type Client struct {
	baseURL   string
	authToken string
	http      *httpclient.Client
	limiter   *rate.Limiter
	log       *zap.SugaredLogger
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		http:      httpclient.New(cfg.Timeout()),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:       logger.Logger,
	}
}

// NewClientWithHTTP creates a gateway client around an existing HTTP
// client. Used by tests to point at an httptest.Server.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.WrapClient(hc),
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     logger.Logger,
	}
}

// apiError is the error envelope the gateway returns on non-2xx.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do executes one JSON round trip against the gateway.
// out may be nil when the response body is irrelevant.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait cancelled")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal %s %s request", method, path)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s %s request", method, path)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "gateway request failed: %s %s", method, path)
	}
	defer resp.Body.Close()

	c.log.Debugw("Gateway request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s %s response", method, path)
	}
	return nil
}

// decodeError turns a non-2xx response into a classified error.
func (c *Client) decodeError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope apiError
	_ = json.Unmarshal(raw, &envelope)
	message := envelope.text()
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = resp.Status
	}

	var err error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		err = errors.Wrap(errors.ErrNotFound, message)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		err = errors.Wrap(errors.ErrUnauthorized, message)
	case resp.StatusCode == http.StatusBadRequest:
		err = errors.Wrap(errors.ErrInvalidRequest, message)
	case resp.StatusCode >= 500:
		err = errors.Wrap(errors.ErrServiceUnavailable, message)
	default:
		err = errors.New(message)
	}

	err = errors.WithDetail(err, fmt.Sprintf("HTTP %d", resp.StatusCode))
	err = errors.WithDetail(err, fmt.Sprintf("%s %s", method, path))
	return err
}
