// Package deeplink derives and validates native-app URIs for product links.
// Only Amazon has an app deep link; every other merchant yields nothing.
package deeplink

import (
	"net/url"
	"regexp"
	"strings"

	"shoplink-platform/internal/platform"
)

// Scheme is the Amazon shopping app URI scheme, including separator.
const Scheme = "com.amazon.mobile.shopping.web://"

// androidPackage is the Amazon shopping app package id used in intent URIs.
const androidPackage = "com.amazon.mShop.android.shopping"

var (
	asinDPRe      = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	asinGPRe      = regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`)
	asinProductRe = regexp.MustCompile(`/product/([A-Z0-9]{10})`)

	// Product-path shapes a valid deep link may carry. Links created from
	// unresolved short URLs end up with paths like /3ZiwVUG, which open a
	// blank page in the app; those must be rejected.
	validDPPathRe      = regexp.MustCompile(`^/dp/[A-Z0-9]{10}(/|$)`)
	validGPPathRe      = regexp.MustCompile(`^/gp/product/[A-Z0-9]{10}(/|$)`)
	validProductPathRe = regexp.MustCompile(`^/product/[A-Z0-9]{10}(/|$)`)
)

func extractASIN(path string) string {
	for _, re := range []*regexp.Regexp{asinDPRe, asinGPRe, asinProductRe} {
		if m := re.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	return ""
}

// Generate derives the app deep link for a resolved product URL. It returns
// "" when the merchant has no app deep link or the URL has no product
// identifier: a deep link to a non-product page is invalid, not merely
// low-confidence. The canonical /dp/ASIN path is used, and the original
// query string is kept so affiliate attribution parameters survive.
func Generate(p platform.Platform, resolvedURL string) string {
	if p != platform.Amazon {
		return ""
	}

	u, err := url.Parse(resolvedURL)
	if err != nil {
		return ""
	}
	asin := extractASIN(u.Path)
	if asin == "" {
		return ""
	}

	link := Scheme + "amazon.com/dp/" + asin
	if u.RawQuery != "" {
		link += "?" + u.RawQuery
	}
	return link
}

// Validate checks that a candidate deep link has the app scheme and a real
// product path. Stored deep links are re-validated on every redirect because
// creation-time data can be stale or wrong. Validation is idempotent: any
// link Generate produces passes, and passing links keep passing.
func Validate(candidate string) bool {
	if !strings.HasPrefix(candidate, Scheme) {
		return false
	}
	rest := strings.TrimPrefix(candidate, Scheme+"amazon.com")
	if rest == "" {
		rest = "/"
	}
	path := rest
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return validDPPathRe.MatchString(path) ||
		validGPPathRe.MatchString(path) ||
		validProductPathRe.MatchString(path)
}

// WrapIntent wraps a validated deep link into an Android intent URI. The
// embedded browser_fallback_url lets the OS fall back to the web page when
// the app is not installed, without another round trip through this service.
func WrapIntent(deepLink, fallbackURL string) string {
	rest := strings.TrimPrefix(deepLink, Scheme)
	var b strings.Builder
	b.WriteString("intent://")
	b.WriteString(rest)
	b.WriteString("#Intent;scheme=")
	b.WriteString(strings.TrimSuffix(Scheme, "://"))
	b.WriteString(";package=")
	b.WriteString(androidPackage)
	b.WriteString(";S.browser_fallback_url=")
	b.WriteString(url.QueryEscape(fallbackURL))
	b.WriteString(";end")
	return b.String()
}
