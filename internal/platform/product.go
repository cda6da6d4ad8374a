package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Product is the merchant product identity extracted from a final URL.
// All fields may be empty: unmatched paths yield the zero value, never an
// error.
type Product struct {
	ID     string
	IDType string
	Slug   string
}

var (
	amazonDPRe      = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	amazonGPRe      = regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`)
	amazonProductRe = regexp.MustCompile(`/product/([A-Z0-9]{10})`)
	amazonSlugRe    = regexp.MustCompile(`/dp/[A-Z0-9]{10}/([^/?]+)`)

	walmartItemRe = regexp.MustCompile(`/ip/([^/]+)/([^/?]+)`)

	// Low-confidence catch-all for unclassified merchants.
	genericSKURe = regexp.MustCompile(`^[A-Za-z0-9-]{3,50}$`)
)

// ExtractProduct parses merchant-specific path shapes out of a final URL.
func ExtractProduct(rawURL string, p Platform) Product {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Product{}
	}
	path := u.Path

	switch p {
	case Amazon:
		var prod Product
		if asin := firstMatch(path, amazonDPRe, amazonGPRe, amazonProductRe); asin != "" {
			prod.ID = asin
			prod.IDType = "asin"
		}
		if m := amazonSlugRe.FindStringSubmatch(path); m != nil {
			prod.Slug = m[1]
		}
		return prod

	case Walmart:
		if m := walmartItemRe.FindStringSubmatch(path); m != nil {
			return Product{ID: m[2], IDType: "itemId", Slug: m[1]}
		}
		return Product{}

	default:
		segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
		if len(segments) == 0 {
			return Product{}
		}
		last := segments[len(segments)-1]
		if genericSKURe.MatchString(last) {
			return Product{ID: last, IDType: "sku"}
		}
		return Product{}
	}
}

func firstMatch(path string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	return ""
}
