package httputil

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout time.Duration
	// Proxy overrides HTTP_PROXY/HTTPS_PROXY/NO_PROXY when set.
	Proxy     string
	UserAgent string
}

// NewClient builds the client shared by the update check, artifact download
// and metrics submission.
func NewClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: proxyFunc(opts.Proxy),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{base: transport, agent: opts.UserAgent}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

func proxyFunc(proxy string) func(*http.Request) (*url.URL, error) {
	var cfg *httpproxy.Config
	if proxy == "" {
		cfg = httpproxy.FromEnvironment()
	} else {
		env := httpproxy.FromEnvironment()
		cfg = &httpproxy.Config{HTTPProxy: proxy, HTTPSProxy: proxy, NoProxy: env.NoProxy}
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}
