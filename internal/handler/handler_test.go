package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"shoplink-platform/internal/model"
	"shoplink-platform/internal/shortcode"
	"shoplink-platform/web"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	tiktokUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 TikTok"
)

// identityResolver stands in for the network resolver: URLs resolve to
// themselves, so handler tests never leave the process.
type identityResolver struct{}

func (identityResolver) Resolve(_ context.Context, rawURL string) string          { return rawURL }
func (identityResolver) ResolveShortLink(_ context.Context, rawURL string) string { return rawURL }

// setupTest builds a clean in-memory environment: sqlite store, no redis,
// identity resolver, and the real routes.
func setupTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Link{}, &model.DailyClick{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	logger := zap.NewNop().Sugar()
	codes := shortcode.NewGenerator(db, logger)
	linkHandler := NewLinkHandler(db, nil, codes, identityResolver{}, "https://shoplink.to", logger)

	router := gin.New()
	router.SetHTMLTemplate(web.Templates())
	router.GET("/:code", linkHandler.Redirect)

	api := router.Group("/api")
	// Stand-in for the auth middleware: every request acts as user 1.
	api.Use(func(c *gin.Context) { c.Set("user_id", uint(1)) })
	api.POST("/shorten", linkHandler.CreateShortLink)
	api.GET("/links", linkHandler.GetLinks)
	api.GET("/links/:code/clicks", linkHandler.GetClickStats)

	return router, db
}

func createLink(t *testing.T, router *gin.Engine, url string) CreateLinkResponse {
	t.Helper()

	body, _ := json.Marshal(CreateLinkRequest{URL: url})
	req, _ := http.NewRequest(http.MethodPost, "/api/shorten", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, w.Code, w.Body.String())

	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func get(router *gin.Engine, path, ua, referer string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAmazonProductLink(t *testing.T) {
	router, db := setupTest(t)

	resp := createLink(t, router, "https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20")
	assert.Equal(t, "amazon", resp.Platform)
	assert.Equal(t, "Amazon • B0CNCL35CH", resp.Label)
	assert.Len(t, resp.Code, shortcode.CodeLength)
	assert.Equal(t, "https://shoplink.to/"+resp.Code, resp.ShortURL)

	var link model.Link
	require.NoError(t, db.Where("code = ?", resp.Code).First(&link).Error)
	require.NotNil(t, link.MerchantProductID)
	assert.Equal(t, "B0CNCL35CH", *link.MerchantProductID)
	require.NotNil(t, link.MerchantProductIDType)
	assert.Equal(t, "asin", *link.MerchantProductIDType)
	require.NotNil(t, link.AppDeeplinkURL)
	assert.Equal(t, "com.amazon.mobile.shopping.web://amazon.com/dp/B0CNCL35CH?tag=aff-20", *link.AppDeeplinkURL)
	assert.True(t, link.IsActive)
}

func TestCreateDeduplicatesSameProduct(t *testing.T) {
	router, db := setupTest(t)

	first := createLink(t, router, "https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20")
	second := createLink(t, router, "https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20")
	assert.Equal(t, first.Code, second.Code)

	var count int64
	db.Model(&model.Link{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	router, _ := setupTest(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/shorten", bytes.NewBufferString(`{"url":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirectUnknownCodeRendersNotFound(t *testing.T) {
	router, db := setupTest(t)

	w := get(router, "/nosuchcd", desktopUA, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "does not exist")

	var count int64
	db.Model(&model.DailyClick{}).Count(&count)
	assert.Equal(t, int64(0), count, "not-found must write no click record")
}

func TestRedirectInactiveLinkRendersNotFound(t *testing.T) {
	router, db := setupTest(t)
	resp := createLink(t, router, "https://example.com/products/ABC-123")
	require.NoError(t, db.Model(&model.Link{}).Where("code = ?", resp.Code).
		Update("is_active", false).Error)

	w := get(router, "/"+resp.Code, desktopUA, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var link model.Link
	require.NoError(t, db.Where("code = ?", resp.Code).First(&link).Error)
	assert.Equal(t, int64(0), link.TotalClicks)
}

func TestRedirectPassThroughDesktopIssues302(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://example.com/products/ABC-123")

	w := get(router, "/"+resp.Code, desktopUA, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/products/ABC-123", w.Header().Get("Location"))
}

func TestRedirectPassThroughMobileRendersAutoRedirectPage(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://example.com/products/ABC-123")

	w := get(router, "/"+resp.Code, iphoneUA, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "https://example.com/products/ABC-123")
	assert.Empty(t, w.Header().Get("Location"))
}

func TestRedirectWalmartDesktopRendersAutoRedirectPage(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://www.walmart.com/ip/vacuum-cleaner/987654321")

	w := get(router, "/"+resp.Code, desktopUA, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "walmart.com")
}

func TestRedirectAmazonMobileRendersInterstitial(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20")

	w := get(router, "/"+resp.Code, iphoneUA, "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Open in app")
	assert.Contains(t, body, "Continue in browser")
	assert.Contains(t, body, "com.amazon.mobile.shopping.web://")
}

func TestRedirectAmazonInTikTokWebviewSkipsInterstitial(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://www.amazon.com/dp/B0CNCL35CH?tag=aff-20")

	w := get(router, "/"+resp.Code, tiktokUA, "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "Open in app")
	assert.NotContains(t, body, "com.amazon.mobile.shopping.web://")
}

func TestRedirectCountsEveryValidRequest(t *testing.T) {
	router, db := setupTest(t)
	resp := createLink(t, router, "https://example.com/products/ABC-123")

	for i := 0; i < 3; i++ {
		get(router, "/"+resp.Code, desktopUA, "")
	}

	var link model.Link
	require.NoError(t, db.Where("code = ?", resp.Code).First(&link).Error)
	assert.Equal(t, int64(3), link.TotalClicks)

	var dailySum int64
	db.Model(&model.DailyClick{}).Where("link_id = ?", link.ID).
		Select("COALESCE(SUM(clicks), 0)").Scan(&dailySum)
	assert.Equal(t, int64(3), dailySum)
}

func TestGetClickStats(t *testing.T) {
	router, _ := setupTest(t)
	resp := createLink(t, router, "https://example.com/products/ABC-123")

	for i := 0; i < 2; i++ {
		get(router, "/"+resp.Code, desktopUA, "")
	}

	w := get(router, "/api/links/"+resp.Code+"/clicks", desktopUA, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats ClickStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, resp.Code, stats.Code)
	assert.Equal(t, int64(2), stats.TodayClicks)
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, 7, stats.Range)
}
