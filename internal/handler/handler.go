package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shoplink-platform/internal/clicks"
	"shoplink-platform/internal/deeplink"
	"shoplink-platform/internal/model"
	"shoplink-platform/internal/platform"
	"shoplink-platform/internal/routing"
	"shoplink-platform/internal/shortcode"
)

// URLResolver is the redirect-chain resolving collaborator. The concrete
// implementation lives in internal/resolver; tests substitute a stub so no
// handler test touches the network.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) string
	ResolveShortLink(ctx context.Context, rawURL string) string
}

// LinkHandler serves link creation, listing, stats and the redirect engine.
type LinkHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	codes    *shortcode.Generator
	resolver URLResolver
	engine   *routing.Engine
	ledger   *clicks.Ledger
	baseURL  string
	logger   *zap.SugaredLogger
}

// NewLinkHandler wires the engine and its collaborators. baseURL is the
// configured external base of short links.
func NewLinkHandler(db *gorm.DB, redisClient *redis.Client, codes *shortcode.Generator, res URLResolver, baseURL string, logger *zap.SugaredLogger) *LinkHandler {
	return &LinkHandler{
		db:       db,
		redis:    redisClient,
		codes:    codes,
		resolver: res,
		engine:   routing.NewEngine(res),
		ledger:   clicks.NewLedger(db, logger),
		baseURL:  baseURL,
		logger:   logger.Named("handler"),
	}
}

// IndexPage renders the landing page.
func (h *LinkHandler) IndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// HealthCheck godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} gin.H
// @Router /health [get]
func (h *LinkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

type CreateLinkRequest struct {
	URL string `json:"url" binding:"required,url" example:"https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20"`
}

type CreateLinkResponse struct {
	ShortURL string `json:"short_url" example:"https://shoplink.to/aB3xK9qZ"`
	Platform string `json:"platform" example:"amazon"`
	Label    string `json:"label" example:"Amazon • B0CNCL35CH"`
	Code     string `json:"code" example:"aB3xK9qZ"`
}

// createAttempts bounds retries when an allocated code loses the insert race.
const createAttempts = 3

// CreateShortLink godoc
// @Summary Create an affiliate short link
// @Description Resolves the URL, classifies the merchant, derives product identity and app deep link, and persists the link.
// @Tags Links
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param url body CreateLinkRequest true "destination URL"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} gin.H
// @Failure 500 {object} gin.H
// @Router /api/shorten [post]
func (h *LinkHandler) CreateShortLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	userID := currentUserID(c)

	resolvedURL := h.resolver.Resolve(c.Request.Context(), req.URL)
	merchant := platform.Detect(resolvedURL)
	product := platform.ExtractProduct(resolvedURL, merchant)
	label := platform.Label(merchant, product.ID)

	// De-duplicate: the same user shortening the same product gets the
	// existing link back.
	if product.ID != "" {
		var existing model.Link
		err := h.db.Where("user_id = ? AND platform = ? AND merchant_product_id = ?",
			userID, string(merchant), product.ID).First(&existing).Error
		if err == nil {
			c.JSON(http.StatusOK, CreateLinkResponse{
				ShortURL: h.baseURL + "/" + existing.Code,
				Platform: existing.Platform,
				Label:    existing.Label,
				Code:     existing.Code,
			})
			return
		}
	}

	appLink := deeplink.Generate(merchant, resolvedURL)

	link := model.Link{
		UserID:                userID,
		OriginalURL:           req.URL,
		ResolvedURL:           resolvedURL,
		FallbackURL:           resolvedURL,
		Platform:              string(merchant),
		MerchantProductID:     nullable(product.ID),
		MerchantProductIDType: nullable(product.IDType),
		ProductSlug:           nullable(product.Slug),
		AppDeeplinkURL:        nullable(appLink),
		Label:                 label,
		IsActive:              true,
	}

	if err := h.createWithFreshCode(&link); err != nil {
		if errors.Is(err, shortcode.ErrCodeExhausted) {
			h.logger.Errorw("code allocation exhausted", "url", req.URL)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not allocate a short code"})
			return
		}
		h.logger.Errorw("failed to create link", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create link"})
		return
	}

	h.cacheLink(&link)

	c.JSON(http.StatusCreated, CreateLinkResponse{
		ShortURL: h.baseURL + "/" + link.Code,
		Platform: link.Platform,
		Label:    link.Label,
		Code:     link.Code,
	})
}

// createWithFreshCode allocates a code and inserts the link. Losing the
// uniqueness race on insert means another writer claimed the code first;
// that is a retry, with the unique index as the final arbiter.
func (h *LinkHandler) createWithFreshCode(link *model.Link) error {
	var err error
	for i := 0; i < createAttempts; i++ {
		link.Code, err = h.codes.NewCode()
		if err != nil {
			return err
		}
		err = h.db.Create(link).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		link.ID = 0
	}
	return shortcode.ErrCodeExhausted
}

// GetLinks godoc
// @Summary List the caller's active links
// @Tags Links
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Link
// @Router /api/links [get]
func (h *LinkHandler) GetLinks(c *gin.Context) {
	var links []model.Link
	err := h.db.Where("user_id = ? AND is_active = ?", currentUserID(c), true).
		Order("created_at DESC").Find(&links).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch links"})
		return
	}
	c.JSON(http.StatusOK, links)
}

type DailyStat struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type ClickStatsResponse struct {
	Code        string      `json:"code"`
	TotalClicks int64       `json:"total_clicks"`
	Range       int         `json:"range"`
	DailyStats  []DailyStat `json:"daily_stats"`
	TodayClicks int64       `json:"today_clicks"`
}

// GetClickStats godoc
// @Summary Per-day click counts for one of the caller's links
// @Description Returns daily buckets for the requested range excluding today, plus today's count.
// @Tags Links
// @Security ApiKeyAuth
// @Produce json
// @Param code path string true "short code"
// @Param range query int false "days (7 or 30)" default(7)
// @Success 200 {object} ClickStatsResponse
// @Failure 403 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /api/links/{code}/clicks [get]
func (h *LinkHandler) GetClickStats(c *gin.Context) {
	code := c.Param("code")

	var link model.Link
	if err := h.db.Where("code = ?", code).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	if link.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your link"})
		return
	}

	days := 7
	if c.Query("range") == "30" {
		days = 30
	}

	today := clicks.Today()
	since := today.AddDate(0, 0, -days)

	var daily []model.DailyClick
	if err := h.db.Where("link_id = ? AND date >= ?", link.ID, since).
		Order("date ASC").Find(&daily).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch clicks"})
		return
	}

	resp := ClickStatsResponse{Code: code, Range: days, DailyStats: []DailyStat{}}
	for _, d := range daily {
		if d.Date.Equal(today) {
			resp.TodayClicks = d.Clicks
			continue
		}
		resp.DailyStats = append(resp.DailyStats, DailyStat{Date: d.Date.Format("2006-01-02"), Clicks: d.Clicks})
		resp.TotalClicks += d.Clicks
	}
	resp.TotalClicks += resp.TodayClicks

	c.JSON(http.StatusOK, resp)
}

// GetStats godoc
// @Summary Aggregate link and click totals
// @Tags Links
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	var stats struct {
		TotalLinks  int64 `json:"total_links"`
		TotalClicks int64 `json:"total_clicks"`
		ActiveLinks int64 `json:"active_links"`
	}
	h.db.Model(&model.Link{}).Count(&stats.TotalLinks)
	h.db.Model(&model.Link{}).Select("COALESCE(SUM(total_clicks), 0)").Scan(&stats.TotalClicks)
	h.db.Model(&model.Link{}).Where("is_active = ?", true).Count(&stats.ActiveLinks)
	c.JSON(http.StatusOK, stats)
}

// ToggleLink godoc
// @Summary Toggle a link's active flag
// @Tags Admin
// @Security ApiKeyAuth
// @Produce json
// @Param code path string true "short code"
// @Success 200 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /api/links/{code} [put]
func (h *LinkHandler) ToggleLink(c *gin.Context) {
	code := c.Param("code")
	var link model.Link
	if err := h.db.Where("code = ?", code).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	newStatus := !link.IsActive
	h.db.Model(&link).Update("is_active", newStatus)
	h.invalidateLink(code)
	c.JSON(http.StatusOK, gin.H{"message": "link updated", "is_active": newStatus})
}

// DeleteLink godoc
// @Summary Delete a link
// @Tags Admin
// @Security ApiKeyAuth
// @Produce json
// @Param code path string true "short code"
// @Success 200 {object} gin.H
// @Router /api/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")
	h.invalidateLink(code)
	if err := h.db.Where("code = ?", code).Delete(&model.Link{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "link deleted"})
}

func currentUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
