// Package remote fetches module archives from remote URLs for link installs.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/asaskevich/govalidator"
	"github.com/cenkalti/backoff/v4"
	"github.com/juju/ratelimit"

	"github.com/priyxstudio/sgo/system"
)

const (
	ErrInvalidURL     = errors.Sentinel("remote: url must be an absolute http(s) url")
	ErrDownloadFailed = errors.Sentinel("remote: failed to download archive")
)

// RequestError is returned when the remote answers with a non-2xx status.
type RequestError struct {
	URL        string
	StatusCode int
}

func (re *RequestError) Error() string {
	return fmt.Sprintf("remote: %s responded with %d %s", re.URL, re.StatusCode, http.StatusText(re.StatusCode))
}

// Is allows errors.Is(err, ErrDownloadFailed) for any non-2xx response.
func (re *RequestError) Is(target error) bool {
	return target == ErrDownloadFailed
}

// Client downloads archives with retries, a per-attempt timeout, and an
// optional bandwidth cap.
type Client struct {
	httpClient    *http.Client
	timeout       time.Duration
	retries       uint64
	initialDelay  time.Duration
	bytesPerSec   int64
	customHeaders map[string]string
}

type ClientOption func(c *Client)

// New returns a client with a two minute timeout and three retries.
func New(opts ...ClientOption) *Client {
	c := &Client{
		timeout:      2 * time.Minute,
		retries:      3,
		initialDelay: 500 * time.Millisecond,
	}
	c.httpClient = &http.Client{CheckRedirect: redirectLimit(10)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout limits how long a single download attempt may take.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many extra attempts follow a network error or a 5xx
// response.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
	}
}

// WithBackoff sets the delay before the first retry.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.initialDelay = d
	}
}

// WithMaxRedirects limits how many redirects a download follows.
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		c.httpClient.CheckRedirect = redirectLimit(n)
	}
}

// WithDownloadLimit caps read bandwidth to mib MiB/s. Values below 1 disable
// the cap.
func WithDownloadLimit(mib int) ClientOption {
	return func(c *Client) {
		if mib > 0 {
			c.bytesPerSec = int64(mib) * 1024 * 1024
		}
	}
}

// WithCustomHeaders sets extra headers sent with every request, for example
// Cloudflare Access credentials in front of a private module registry.
func WithCustomHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.customHeaders = headers
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) (*url.URL, error) {
	if !govalidator.IsURL(raw) {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// DownloadFile fetches raw into the file at path, recreating it for every
// attempt. authToken, when set, is sent as a bearer token. Client errors
// (4xx) are not retried.
func (c *Client) DownloadFile(ctx context.Context, raw string, authToken string, path string) (int64, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return 0, err
	}

	var written int64
	attempt := 0
	op := func() error {
		attempt++
		n, err := c.download(ctx, u, authToken, path)
		if err == nil {
			written = n
			return nil
		}
		var re *RequestError
		if errors.As(err, &re) && re.StatusCode < 500 && re.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		log.WithFields(log.Fields{"url": u.Redacted(), "attempt": attempt, "error": err}).Debug("archive download attempt failed")
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialDelay
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		_ = os.Remove(path)
		var re *RequestError
		if errors.As(err, &re) {
			return 0, err
		}
		return 0, errors.WrapIff(ErrDownloadFailed, "remote: %s", err)
	}
	return written, nil
}

func (c *Client) download(ctx context.Context, u *url.URL, authToken string, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("SGO/v%s (id:%s)", system.Version, "link-install"))
	req.Header.Set("Accept", "application/zip, application/octet-stream, */*")
	for k, v := range c.customHeaders {
		req.Header.Set(k, v)
	}
	if token := strings.TrimSpace(authToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return 0, &RequestError{URL: u.Redacted(), StatusCode: res.StatusCode}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, backoff.Permanent(errors.WithStack(err))
	}
	defer f.Close()

	var body io.Reader = res.Body
	if c.bytesPerSec > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(c.bytesPerSec), c.bytesPerSec)
		body = ratelimit.Reader(body, bucket)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		return n, errors.Wrap(err, "remote: failed to read response body")
	}
	return n, nil
}

func redirectLimit(n int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= n {
			return errors.Errorf("remote: stopped after %d redirects", n)
		}
		return nil
	}
}
