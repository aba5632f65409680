// Package transport sends the HTTP requests authority clients depend on.
//
// Every call takes an Options bag that decides how redirects, proxies, cookies and
// credentials are handled for that one request, plus a per-call timeout.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/pkg/secret"
)

const (
	// DefaultTimeout bounds generic network calls.
	DefaultTimeout = 90 * time.Second

	// maxBodySize caps how much of a response body is buffered.
	maxBodySize = 4 << 20
)

// Options selects per-request behaviour.
type Options struct {
	AllowRedirections bool
	// PreAuthenticate sends Credential on the first request instead of waiting for a
	// Basic challenge.
	PreAuthenticate bool
	// UseCookies keeps a cookie jar for the request and its redirects, seeded with Cookies.
	UseCookies bool
	// UseCredentials attaches Credential as Basic authorization.
	UseCredentials bool
	UseProxy       bool
	Timeout        time.Duration

	Credential *secret.Credential
	Cookies    []*http.Cookie
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds the process-wide transport settings.
type Config struct {
	UserAgent string
	// Proxy is used when a request sets UseProxy and its target carries no proxy of its own.
	// Empty falls back to the HTTP(S)_PROXY environment.
	Proxy          string
	DefaultTimeout time.Duration
}

// Client issues requests for targets.
type Client struct {
	userAgent string
	proxy     *url.URL
	timeout   time.Duration
	base      *http.Transport
	logger    *logging.Logger
}

// NewClient creates a client. An unparsable proxy is an error.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	c := &Client{
		userAgent: cfg.UserAgent,
		timeout:   cfg.DefaultTimeout,
		base:      http.DefaultTransport.(*http.Transport).Clone(),
		logger:    logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "credbroker"
	}
	if cfg.Proxy != "" {
		p, err := url.Parse(cfg.Proxy)
		if err != nil || p.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", cfg.Proxy)
		}
		c.proxy = p
	}
	return c, nil
}

// UserAgent returns the User-Agent header sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, target secret.TargetURI, headers http.Header, opts Options) (*Response, error) {
	return c.Do(ctx, http.MethodGet, target, headers, nil, opts)
}

// Head issues a HEAD.
func (c *Client) Head(ctx context.Context, target secret.TargetURI, headers http.Header, opts Options) (*Response, error) {
	return c.Do(ctx, http.MethodHead, target, headers, nil, opts)
}

// Post issues a POST with body.
func (c *Client) Post(ctx context.Context, target secret.TargetURI, headers http.Header, body []byte, opts Options) (*Response, error) {
	return c.Do(ctx, http.MethodPost, target, headers, body, opts)
}

// Do sends one request. Non-2xx statuses are returned as a Response, not an error.
func (c *Client) Do(ctx context.Context, method string, target secret.TargetURI, headers http.Header, body []byte, opts Options) (*Response, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if opts.UseCredentials && opts.Credential == nil {
		return nil, errors.New("UseCredentials requires a credential")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.httpClient(target, opts)
	if err != nil {
		return nil, err
	}

	endpoint := target.QueryURI()
	endpoint.User = nil

	resp, err := c.send(ctx, client, method, endpoint.String(), headers, body, opts, opts.UseCredentials && opts.PreAuthenticate)
	if err != nil {
		return nil, err
	}

	// Without pre-authentication the credential is only offered in answer to a Basic challenge.
	if opts.UseCredentials && !opts.PreAuthenticate && resp.StatusCode == http.StatusUnauthorized && isBasicChallenge(resp.Header) {
		c.logger.Debug("%s %s challenged, retrying with credentials", method, endpoint.Host)
		resp, err = c.send(ctx, client, method, endpoint.String(), headers, body, opts, true)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, client *http.Client, method, endpoint string, headers http.Header, body []byte, opts Options, authorize bool) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if authorize {
		req.Header.Set("Authorization", opts.Credential.BasicAuthorization())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Method: method, URL: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Method: method, URL: endpoint, Err: err}
	}

	c.logger.Debug("%s %s -> %d", method, req.URL.Host, resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) httpClient(target secret.TargetURI, opts Options) (*http.Client, error) {
	rt := c.base.Clone()
	rt.Proxy = nil
	if opts.UseProxy {
		switch {
		case target.HasProxy():
			rt.Proxy = http.ProxyURL(target.ProxyURI())
		case c.proxy != nil:
			rt.Proxy = http.ProxyURL(c.proxy)
		default:
			rt.Proxy = http.ProxyFromEnvironment
		}
	}

	client := &http.Client{Transport: rt}
	if !opts.AllowRedirections {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if opts.UseCookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		if len(opts.Cookies) > 0 {
			jar.SetCookies(target.QueryURI(), opts.Cookies)
		}
		client.Jar = jar
	}
	return client, nil
}

func isBasicChallenge(h http.Header) bool {
	for _, v := range h.Values("WWW-Authenticate") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "basic") {
			return true
		}
	}
	return false
}

// Error is a request that produced no response.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a deadline or network timeout. Timeouts are transient.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
