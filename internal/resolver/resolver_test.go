package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestResolver() *Resolver {
	return New(3*time.Second, 1*time.Second, zap.NewNop().Sugar())
}

// chainServer redirects /hop/i to /hop/i+1 until i reaches hops, then 200s.
func chainServer(t *testing.T, hops int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if i < hops {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", i+1), http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveFollowsRedirectChain(t *testing.T) {
	srv := chainServer(t, 3)
	r := newTestResolver()

	got := r.Resolve(context.Background(), srv.URL+"/hop/0")
	assert.Equal(t, srv.URL+"/hop/3", got)
}

func TestResolveFiveHopChainReturnsFifthLocation(t *testing.T) {
	srv := chainServer(t, 5)
	r := newTestResolver()

	got := r.Resolve(context.Background(), srv.URL+"/hop/0")
	assert.Equal(t, srv.URL+"/hop/5", got)
}

func TestResolveSixHopChainReturnsOriginal(t *testing.T) {
	srv := chainServer(t, 6)
	r := newTestResolver()

	start := srv.URL + "/hop/0"
	assert.Equal(t, start, r.Resolve(context.Background(), start))
}

func TestResolveNonRedirectReturnsInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver()

	assert.Equal(t, srv.URL+"/page", r.Resolve(context.Background(), srv.URL+"/page"))
}

func TestResolveForbiddenReturnsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver()

	start := srv.URL + "/item"
	assert.Equal(t, start, r.Resolve(context.Background(), start))
}

func TestResolveBlockedLocationReturnsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/blocked?reason=bot", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver()

	start := srv.URL + "/start"
	assert.Equal(t, start, r.Resolve(context.Background(), start))
}

func TestResolveNetworkErrorReturnsOriginal(t *testing.T) {
	r := newTestResolver()
	// Nothing listens here; the loop must fail open to the input, never a
	// partial hop.
	start := "http://127.0.0.1:1/dead"
	assert.Equal(t, start, r.Resolve(context.Background(), start))
}

func TestResolveRelativeLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a/start" {
			w.Header().Set("Location", "final")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver()

	got := r.Resolve(context.Background(), srv.URL+"/a/start")
	assert.Equal(t, srv.URL+"/a/final", got)
}

func TestResolveSkipsWalmart(t *testing.T) {
	r := newTestResolver()
	url := "https://www.walmart.com/ip/thing/123"
	assert.Equal(t, url, r.Resolve(context.Background(), url))
}

func TestResolveSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	newTestResolver().Resolve(context.Background(), srv.URL)

	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Contains(t, gotAccept, "text/html")
}

func TestResolveShortLinkFailsOpen(t *testing.T) {
	r := newTestResolver()
	start := "http://127.0.0.1:1/amzn"
	assert.Equal(t, start, r.ResolveShortLink(context.Background(), start))
}

func TestResolveShortLinkFollowsByGet(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if r.URL.Path == "/short" {
			http.Redirect(w, r, "/dp/B0CNCL35CH", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	got := newTestResolver().ResolveShortLink(context.Background(), srv.URL+"/short")
	assert.Equal(t, srv.URL+"/dp/B0CNCL35CH", got)
	assert.Equal(t, http.MethodGet, method)
}

func TestIsAmazonShortHost(t *testing.T) {
	assert.True(t, IsAmazonShortHost("https://amzn.to/3ZiwVUG"))
	assert.True(t, IsAmazonShortHost("https://a.co/d/abc"))
	assert.True(t, IsAmazonShortHost("https://www.amzn.to/x"))
	assert.False(t, IsAmazonShortHost("https://www.amazon.com/dp/B0CNCL35CH"))
	assert.False(t, IsAmazonShortHost("https://bit.ly/abc"))
	assert.False(t, IsAmazonShortHost("not a url"))
}
