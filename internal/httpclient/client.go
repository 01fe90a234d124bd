// Package httpclient provides the tuned HTTP client the gateway layer
// builds on.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/toppsdigital/cardsync/errors"
)

// Client wraps http.Client with transport tuning suited to many small,
// frequent polling requests against a single backend host.
type Client struct {
	*http.Client
	maxRedirects int
}

// New creates an HTTP client with connection reuse tuned for polling.
func New(timeout time.Duration) *Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	client := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		maxRedirects: 10,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		return nil
	}

	return client
}

// WrapClient wraps an existing http.Client. Intended for tests that need
// to inject an httptest.Server client.
func WrapClient(client *http.Client) *Client {
	return &Client{
		Client:       client,
		maxRedirects: 10,
	}
}
