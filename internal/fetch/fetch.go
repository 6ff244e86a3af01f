// Package fetch downloads HTTPS resources into memory.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/tui"
	"golang.org/x/net/http/httpproxy"
)

const (
	DefaultTimeout   = 10 * time.Minute
	DefaultUserAgent = "pyrite (+https://github.com/replit/pyrite)"
	maxRedirects     = 10
)

var (
	ErrInsecureScheme = errors.New("refusing insecure download")
	ErrNotFound       = errors.New("not found")
)

// StatusError is returned for any non-2xx response other than 404.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to download %s: HTTP status %d", e.URL, e.Code)
}

// NetworkError wraps transport failures.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to download %s: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Fetcher downloads over HTTPS only.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// New returns a Fetcher whose transport routes requests through the
// proxies from cfg. A nil cfg falls back to the proxy environment
// variables.
func New(cfg *config.Config) *Fetcher {
	proxy := &httpproxy.Config{
		HTTPSProxy: cfg.HTTPSProxyURL(),
		HTTPProxy:  cfg.HTTPProxyURL(),
		NoProxy:    cfg.NoProxy(),
	}
	proxyFunc := proxy.ProxyFunc()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}

	return &Fetcher{
		Client: &http.Client{
			Timeout:       DefaultTimeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		UserAgent: DefaultUserAgent,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirected to %s", ErrInsecureScheme, req.URL.Redacted())
	}
	return nil
}

func isHTTPS(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "https://")
}

// Fetch downloads rawURL into memory. A 404 is reported as ErrNotFound.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, output tui.CommandOutput) ([]byte, error) {
	data, found, err := f.FetchAllow404(ctx, rawURL, output)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, ErrNotFound)
	}
	return data, nil
}

// FetchAllow404 is like Fetch but reports a 404 as found == false
// instead of an error.
func (f *Fetcher) FetchAllow404(ctx context.Context, rawURL string, output tui.CommandOutput) ([]byte, bool, error) {
	if !isHTTPS(rawURL) {
		return nil, false, fmt.Errorf("%w: %s", ErrInsecureScheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, &NetworkError{URL: rawURL, Err: err}
	}
	userAgent := f.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout, CheckRedirect: checkRedirect}
	}
	if client.CheckRedirect == nil {
		c := *client
		c.CheckRedirect = checkRedirect
		client = &c
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrInsecureScheme) {
			return nil, false, err
		}
		return nil, false, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	bar := tui.NewByteProgress(resp.ContentLength, output)
	_, err = io.Copy(&buf, io.TeeReader(resp.Body, bar))
	bar.Finish()
	if err != nil {
		return nil, false, &NetworkError{URL: rawURL, Err: err}
	}
	return buf.Bytes(), true, nil
}
