// Package routing picks exactly one response strategy for a redirect
// request. The decision is pure per request; the only persisted effect of a
// redirect (the click increment) is the caller's job.
package routing

import (
	"context"
	"net/url"
	"strings"

	"shoplink-platform/internal/deeplink"
	"shoplink-platform/internal/model"
	"shoplink-platform/internal/platform"
	"shoplink-platform/internal/request"
	"shoplink-platform/internal/resolver"
)

// Strategy is the terminal state of a redirect request.
type Strategy string

const (
	// StrategyNotFound renders the minimal not-found page. No click is
	// recorded.
	StrategyNotFound Strategy = "not_found"
	// StrategyImmediateRedirect issues an HTTP 3xx to the fallback URL.
	StrategyImmediateRedirect Strategy = "immediate_redirect"
	// StrategyAutoRedirectPage renders a page that navigates itself to the
	// fallback URL (meta refresh plus script).
	StrategyAutoRedirectPage Strategy = "auto_redirect_page"
	// StrategyInterstitialChoice renders the open-in-app / continue-in-
	// browser choice. The deep link is never fired without a user gesture.
	StrategyInterstitialChoice Strategy = "interstitial_choice"
)

// Mode is the routing mode of a link.
type Mode string

const (
	// ModePassThrough always goes straight to the fallback URL.
	ModePassThrough Mode = "passthrough"
	// ModeDeepLink attempts a native app open via the interstitial.
	ModeDeepLink Mode = "deeplink"
)

// Decision is the engine's verdict for one request.
type Decision struct {
	Strategy Strategy
	// TargetURL is the navigation target for redirects and auto-redirect
	// pages.
	TargetURL string
	// AppLink is the validated (and, on Android, intent-wrapped) deep link
	// offered on the interstitial.
	AppLink string
	// FallbackURL is the web destination offered next to AppLink.
	FallbackURL string
}

// Visitor is the live request context the engine consumes.
type Visitor struct {
	UserAgent string
	Referer   string
}

// ShortLinkResolver is the single just-in-time resolution the engine may
// perform for an unresolved merchant short link.
type ShortLinkResolver interface {
	ResolveShortLink(ctx context.Context, rawURL string) string
}

// Engine decides how to route redirect requests.
type Engine struct {
	resolver ShortLinkResolver
}

// NewEngine builds a routing engine around a short-link resolver.
func NewEngine(r ShortLinkResolver) *Engine {
	return &Engine{resolver: r}
}

// Hosts Amazon itself owns. An original URL outside this family came from a
// third-party shortener and has no safe app-open destination.
var amazonOwnedFragments = []string{"amazon.com", "amazon.", "amzn.to", "amzn.com", "a.co"}

func isAmazonOwnedURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, fragment := range amazonOwnedFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Third-party shorteners (URLGenius, Linktwin, Bitly, t.co) route through
// tracking hops this service cannot turn into an app destination.
func isThirdPartyShortener(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return strings.Contains(host, "urlgeni") ||
		strings.Contains(host, "linktw") ||
		host == "bit.ly" ||
		host == "t.co"
}

// ModeFor determines the routing mode of a link: deep-link capable only when
// the destination is Amazon and the submitted URL belongs to Amazon's own
// domain family.
func ModeFor(link *model.Link) Mode {
	if platform.Platform(link.Platform) != platform.Amazon {
		return ModePassThrough
	}

	submitted := link.OriginalURL
	if submitted == "" {
		submitted = link.ResolvedURL
	}
	if submitted == "" {
		submitted = link.FallbackURL
	}

	if isThirdPartyShortener(submitted) {
		return ModePassThrough
	}
	if isAmazonOwnedURL(submitted) {
		return ModeDeepLink
	}
	return ModePassThrough
}

// blocksServerRedirect reports whether the destination merchant's edge
// servers drop or mishandle HTTP 3xx issued by this service.
func blocksServerRedirect(link *model.Link) bool {
	return platform.Platform(link.Platform) == platform.Walmart ||
		strings.Contains(link.FallbackURL, "walmart.com") ||
		strings.Contains(link.OriginalURL, "walmart.com")
}

// Decide evaluates the state machine once. The caller records the click for
// any active link before acting on the returned strategy.
func (e *Engine) Decide(ctx context.Context, link *model.Link, visitor Visitor) Decision {
	if link == nil || !link.IsActive {
		return Decision{Strategy: StrategyNotFound}
	}

	mobile := request.IsMobile(visitor.UserAgent)

	if ModeFor(link) == ModePassThrough {
		if !mobile && !blocksServerRedirect(link) {
			return Decision{
				Strategy:    StrategyImmediateRedirect,
				TargetURL:   link.FallbackURL,
				FallbackURL: link.FallbackURL,
			}
		}
		return Decision{
			Strategy:    StrategyAutoRedirectPage,
			TargetURL:   link.FallbackURL,
			FallbackURL: link.FallbackURL,
		}
	}

	// In-app webviews block or mishandle custom-scheme navigation; do not
	// attempt a deep link at all.
	if request.IsInAppBrowser(visitor.UserAgent, visitor.Referer) {
		return Decision{
			Strategy:    StrategyAutoRedirectPage,
			TargetURL:   link.FallbackURL,
			FallbackURL: link.FallbackURL,
		}
	}

	appLink := e.validatedDeepLink(ctx, link)
	if appLink == "" {
		return Decision{
			Strategy:    StrategyAutoRedirectPage,
			TargetURL:   link.FallbackURL,
			FallbackURL: link.FallbackURL,
		}
	}

	if request.IsAndroid(visitor.UserAgent) {
		appLink = deeplink.WrapIntent(appLink, link.FallbackURL)
	}
	return Decision{
		Strategy:    StrategyInterstitialChoice,
		AppLink:     appLink,
		FallbackURL: link.FallbackURL,
	}
}

// validatedDeepLink finds a deep link that passes shape validation. The
// stored link is preferred but never trusted blindly; generation falls back
// through the best available URLs, ending with one just-in-time resolution
// of an unresolved merchant short link.
func (e *Engine) validatedDeepLink(ctx context.Context, link *model.Link) string {
	if link.AppDeeplinkURL != nil && deeplink.Validate(*link.AppDeeplinkURL) {
		return *link.AppDeeplinkURL
	}

	for _, candidate := range []string{link.FallbackURL, link.ResolvedURL, link.OriginalURL} {
		if candidate == "" {
			continue
		}
		if generated := deeplink.Generate(platform.Amazon, candidate); generated != "" {
			return generated
		}
	}

	for _, short := range []string{link.OriginalURL, link.FallbackURL} {
		if short == "" || !resolver.IsAmazonShortHost(short) {
			continue
		}
		resolved := e.resolver.ResolveShortLink(ctx, short)
		if generated := deeplink.Generate(platform.Amazon, resolved); generated != "" {
			return generated
		}
		break
	}

	return ""
}
