// Package request classifies the live request: device class and in-app
// webview detection. Output is consumed per request, never stored.
package request

import (
	"net/url"
	"regexp"
	"strings"
)

var mobileRe = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// In-app browser UA signatures: short-video, photo and messaging app
// webviews that block or swallow custom-scheme navigation.
var inAppRe = regexp.MustCompile(`(?i)TikTok|musical_ly|Instagram|FBAN|FBAV|FB_IAB|Messenger|Snapchat|Line/`)

var androidRe = regexp.MustCompile(`(?i)Android`)

// Social platforms whose webviews spoof a desktop User-Agent. When UA
// detection is negative, a Referer from one of these still classifies the
// request as an in-app webview.
var webviewRefererHosts = []string{
	"tiktok.com",
	"instagram.com",
	"facebook.com",
	"fb.com",
	"messenger.com",
	"snapchat.com",
	"t.co",
}

// IsMobile reports whether the User-Agent belongs to a phone or tablet.
// A missing User-Agent is treated as desktop.
func IsMobile(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return mobileRe.MatchString(userAgent)
}

// IsAndroid reports whether the device runs the OS that needs intent-URI
// wrapping for custom-scheme deep links.
func IsAndroid(userAgent string) bool {
	return androidRe.MatchString(userAgent)
}

// IsInAppBrowser reports whether the request comes from an embedded in-app
// webview. Either signal alone is enough, even when the UA reads as desktop.
func IsInAppBrowser(userAgent, referer string) bool {
	if userAgent != "" && inAppRe.MatchString(userAgent) {
		return true
	}
	return refererFromWebviewHost(referer)
}

func refererFromWebviewHost(referer string) bool {
	if referer == "" {
		return false
	}
	u, err := url.Parse(referer)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, known := range webviewRefererHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}
