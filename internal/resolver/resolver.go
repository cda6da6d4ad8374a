// Package resolver follows HTTP redirect chains to find the URL a human
// browser would land on, with merchant-specific bypass rules. It always
// fails open: on any error the caller gets back a usable URL.
package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// maxRedirects bounds the manual hop loop. A chain longer than this
	// resolves to the original input, never a partial hop.
	maxRedirects = 5

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Resolver resolves submitted URLs to their final destination.
type Resolver struct {
	// head never follows redirects; the loop reads Location itself.
	head *http.Client
	// follow auto-follows, for short-link hosts that only redirect on GET.
	follow *http.Client

	timeout    time.Duration
	jitTimeout time.Duration
	logger     *zap.SugaredLogger
}

// New builds a resolver. timeout bounds creation-time resolution, jitTimeout
// bounds the single just-in-time attempt during a redirect request.
func New(timeout, jitTimeout time.Duration, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		head: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		follow:     &http.Client{},
		timeout:    timeout,
		jitTimeout: jitTimeout,
		logger:     logger.Named("resolver"),
	}
}

// Resolve returns the URL a browser would ultimately land on. Walmart URLs
// are returned unchanged because the merchant's bot defense would otherwise
// get a blocked interstitial captured as if it were the real destination.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if strings.Contains(rawURL, "walmart.com") {
		r.logger.Debugw("skipping resolution for bot-defended merchant", "url", rawURL)
		return rawURL
	}

	// amzn.to / amzn.com only redirect on full GET requests; HEAD returns
	// 200 with no Location.
	if IsAmazonShortHost(rawURL) {
		return r.resolveByGet(ctx, rawURL, r.timeout)
	}

	return r.resolveByHeadLoop(ctx, rawURL)
}

// ResolveShortLink is the bounded single-attempt resolution the routing
// engine uses just in time. Failure silently degrades to the input.
func (r *Resolver) ResolveShortLink(ctx context.Context, rawURL string) string {
	return r.resolveByGet(ctx, rawURL, r.jitTimeout)
}

// IsAmazonShortHost reports whether the URL lives on one of Amazon's own
// short-link redirector hosts.
func IsAmazonShortHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "amzn.to" || host == "amzn.com" || host == "a.co" ||
		strings.HasSuffix(host, ".amzn.to") || strings.HasSuffix(host, ".amzn.com")
}

func (r *Resolver) resolveByGet(ctx context.Context, rawURL string, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	setBrowserHeaders(req)

	resp, err := r.follow.Do(req)
	if err != nil {
		r.logger.Warnw("GET follow failed", "url", rawURL, "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if !strings.HasPrefix(final, "http://") && !strings.HasPrefix(final, "https://") {
		return rawURL
	}
	return final
}

func (r *Resolver) resolveByHeadLoop(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	current := rawURL
	for hops := 0; ; {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return rawURL
		}
		setBrowserHeaders(req)

		resp, err := r.head.Do(req)
		if err != nil {
			// Return the input, not the partially resolved URL, so a
			// dead intermediate hop never leaks into the link.
			r.logger.Warnw("resolution failed", "url", rawURL, "error", err)
			return rawURL
		}
		resp.Body.Close()

		location := resp.Header.Get("Location")
		if blocked(resp.StatusCode, current, location) {
			r.logger.Warnw("resolution hit a bot-defense signal", "url", rawURL, "status", resp.StatusCode)
			return rawURL
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && location != "" {
			hops++
			if hops > maxRedirects {
				r.logger.Warnw("too many redirects", "url", rawURL)
				return rawURL
			}
			next, err := resolveLocation(current, location)
			if err != nil {
				return rawURL
			}
			current = next
			continue
		}

		return current
	}
}

func blocked(status int, currentURL, location string) bool {
	return status == http.StatusForbidden ||
		status == http.StatusTooManyRequests ||
		strings.Contains(currentURL, "/blocked") ||
		strings.Contains(location, "/blocked")
}

// resolveLocation handles relative Location headers.
func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// setBrowserHeaders makes the probe look like a real browser; several
// merchants serve different content or block requests without them.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}
