package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ternarybob/indago/internal/common"
)

// defaultFetchTimeout matches the request_timeout default in the crawler
// config.
const defaultFetchTimeout = 30 * time.Second

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewFetchClient builds the shared tier-1 client: cookie jar, configured
// timeout, optional round-robin proxy rotation, and an OAuth2
// client-credentials transport when fetch_auth is enabled. A nil config
// yields the plain default client.
func NewFetchClient(cfg *common.Config) (*http.Client, error) {
	if cfg == nil {
		return NewDefaultHTTPClient(defaultFetchTimeout), nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	if len(cfg.Crawler.Proxies) > 0 {
		proxyFunc, err := roundRobinProxy(cfg.Crawler.Proxies)
		if err != nil {
			return nil, err
		}
		transport.Proxy = proxyFunc
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Crawler.RequestTimeout,
	}

	if cfg.FetchAuth.Enabled {
		if cfg.FetchAuth.TokenURL == "" || cfg.FetchAuth.ClientID == "" {
			return nil, fmt.Errorf("fetch_auth requires token_url and client_id")
		}
		credentials := &clientcredentials.Config{
			ClientID:     cfg.FetchAuth.ClientID,
			ClientSecret: cfg.FetchAuth.ClientSecret,
			TokenURL:     cfg.FetchAuth.TokenURL,
			Scopes:       cfg.FetchAuth.Scopes,
		}
		// Token requests go through the same transport as page fetches.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
			Transport: transport,
			Timeout:   cfg.Crawler.RequestTimeout,
		})
		authed := credentials.Client(ctx)
		authed.Jar = jar
		authed.Timeout = cfg.Crawler.RequestTimeout
		client = authed
	}

	return client, nil
}

// roundRobinProxy cycles through the configured proxies, one per request.
func roundRobinProxy(proxies []string) (func(*http.Request) (*url.URL, error), error) {
	parsed := make([]*url.URL, 0, len(proxies))
	for _, raw := range proxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
		}
		parsed = append(parsed, u)
	}

	var counter atomic.Uint64
	return func(*http.Request) (*url.URL, error) {
		next := counter.Add(1) - 1
		return parsed[next%uint64(len(parsed))], nil
	}, nil
}
