// Package platform classifies destination URLs into merchant tags and
// extracts merchant product identity from their paths.
package platform

import (
	"net/url"
	"strings"
)

// Platform is the merchant a link ultimately resolves to.
type Platform string

const (
	Amazon    Platform = "amazon"
	Walmart   Platform = "walmart"
	Costco    Platform = "costco"
	HomeDepot Platform = "homedepot"
	Lowes     Platform = "lowes"
	Other     Platform = "other"
)

// Detect maps a URL to a merchant tag. Malformed URLs classify as Other;
// the function is total and never panics.
func Detect(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Other
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	switch {
	case strings.Contains(host, "amazon"), strings.Contains(host, "amzn.to"), strings.Contains(host, "amzn.com"):
		return Amazon
	case strings.Contains(host, "walmart"), strings.Contains(host, "walmrt.us"):
		return Walmart
	case strings.Contains(host, "costco"):
		return Costco
	case strings.Contains(host, "homedepot"):
		return HomeDepot
	case strings.Contains(host, "lowes"):
		return Lowes
	default:
		return Other
	}
}
