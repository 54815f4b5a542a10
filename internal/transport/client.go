// Package transport is the single HTTP boundary for all external sources.
// Every client carries its own timeout, rate limiter, retry policy, and
// authenticator; nothing in the codebase patches shared global state to
// talk to the outside world.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Config describes one source's transport.
type Config struct {
	Source  string
	BaseURL string
	APIKey  string
	Auth    Authenticator

	// RequestsPerSecond caps the outbound request rate. Zero means the
	// default source limit.
	RequestsPerSecond float64

	// MaxRetries bounds retry attempts for transient failures. Zero means
	// the default.
	MaxRetries uint64

	// RetryInterval overrides the base backoff interval. Zero means the
	// default.
	RetryInterval time.Duration
}

// Client provides rate-limited, retrying HTTP access to one source.
type Client struct {
	http          *http.Client
	auth          Authenticator
	limiter       *rate.Limiter
	logger        *zerolog.Logger
	source        string
	baseURL       string
	apiKey        string
	maxRetries    uint64
	retryInterval time.Duration
}

// New creates a transport client for a source.
func New(cfg Config, logger *zerolog.Logger) *Client {
	if cfg.Auth == nil {
		cfg.Auth = &NoAuth{}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = constants.SourceRequestsPerSecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = constants.MaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = constants.RetryBackoff
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		http:          &http.Client{Timeout: DefaultHTTPTimeout},
		auth:          cfg.Auth,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:        logger,
		source:        cfg.Source,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
	}
}

// Get performs a GET against a path under the source's base URL and returns
// the response body. Transient failures are retried with backoff.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	var body []byte
	err := c.withRetry(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := c.checkStatus(resp, path); err != nil {
			return err
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewTransientError("read "+path, 0, err.Error())
		}
		return nil
	})
	return body, err
}

// Post performs a POST with a JSON body and returns the response body.
func (c *Client) Post(ctx context.Context, path string, payload io.Reader) ([]byte, error) {
	var body []byte
	err := c.withRetry(ctx, func() error {
		resp, err := c.do(ctx, http.MethodPost, path, nil, payload)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := c.checkStatus(resp, path); err != nil {
			return err
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewTransientError("read "+path, 0, err.Error())
		}
		return nil
	})
	return body, err
}

// DownloadStream performs a GET and hands the caller the response body for
// streaming. The caller owns closing it. Downloads use the long timeout and
// are not retried mid-stream.
func (c *Client) DownloadStream(ctx context.Context, path string, query map[string]string) (io.ReadCloser, error) {
	dlCtx, cancel := context.WithTimeout(ctx, constants.DownloadTimeout)
	resp, err := c.do(dlCtx, http.MethodGet, path, query, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := c.checkStatus(resp, path); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}
	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, payload io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, errors.NewFatalError("transport", fmt.Sprintf("building %s %s", method, path), err)
	}
	for key, value := range query {
		q := req.URL.Query()
		q.Set(key, value)
		req.URL.RawQuery = q.Encode()
	}
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewTransientError(method+" "+path, 0, err.Error())
	}
	return resp, nil
}

// checkStatus classifies non-2xx responses. Rate limits and server errors
// are transient; authentication failures are fatal so the run aborts
// instead of hammering the source with a bad key.
func (c *Client) checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := errors.NewAPIError(c.source, resp.StatusCode, resp.Status)
	apiErr.Endpoint = path
	return apiErr
}

// withRetry runs op, retrying transient failures with capped exponential
// backoff and jitter.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.IsTransient(err) {
			c.logger.Debug().Err(err).Str("source", c.source).Msg("Retrying transient source failure")
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxInterval = constants.MaxRetryBackoff
	bo.MaxElapsedTime = 0
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}
