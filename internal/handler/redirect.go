package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shoplink-platform/internal/model"
	"shoplink-platform/internal/routing"
)

// Redirect is the engine's HTTP surface: GET /:code. The response is one of
// a 3xx redirect, an auto-redirect page, an interstitial, or a not-found
// page, never JSON. Every valid active link is counted exactly once before
// strategy-specific work; a generic error page is never rendered, the worst
// case being an auto-redirect to the fallback URL.
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	link, found := h.lookupLink(c.Request.Context(), code)

	visitor := routing.Visitor{
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
	decision := h.engine.Decide(c.Request.Context(), link, visitor)

	if decision.Strategy == routing.StrategyNotFound {
		c.HTML(http.StatusNotFound, "notfound.html", nil)
		return
	}

	// Counted before the response goes out; a failed write degrades to an
	// uncounted redirect rather than a broken visit.
	_ = h.ledger.Record(c.Request.Context(), link.ID)

	if !found {
		h.cacheLink(link)
	}

	switch decision.Strategy {
	case routing.StrategyImmediateRedirect:
		c.Redirect(http.StatusFound, decision.TargetURL)

	case routing.StrategyAutoRedirectPage:
		c.HTML(http.StatusOK, "autoredirect.html", gin.H{
			"Target": template.URL(decision.TargetURL),
		})

	case routing.StrategyInterstitialChoice:
		c.HTML(http.StatusOK, "interstitial.html", gin.H{
			"AppLink":  template.URL(decision.AppLink),
			"Fallback": template.URL(decision.FallbackURL),
		})
	}
}

// lookupLink loads a link by code, preferring the cache. The second return
// reports a cache hit.
func (h *LinkHandler) lookupLink(ctx context.Context, code string) (*model.Link, bool) {
	if h.redis != nil {
		cctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()
		if raw, err := h.redis.Get(cctx, linkCacheKey(code)).Result(); err == nil {
			var link model.Link
			if json.Unmarshal([]byte(raw), &link) == nil {
				return &link, true
			}
		}
	}

	var link model.Link
	if err := h.db.Where("code = ?", code).First(&link).Error; err != nil {
		return nil, false
	}
	return &link, false
}

func (h *LinkHandler) cacheLink(link *model.Link) {
	if h.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if raw, err := json.Marshal(link); err == nil {
		h.redis.Set(ctx, linkCacheKey(link.Code), raw, 24*time.Hour)
	}
}

func (h *LinkHandler) invalidateLink(code string) {
	if h.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.redis.Del(ctx, linkCacheKey(code))
}

func linkCacheKey(code string) string {
	return "link:" + code
}
