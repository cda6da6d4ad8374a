package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redisClient "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shoplink-platform/internal/config"
	"shoplink-platform/internal/handler"
	"shoplink-platform/internal/middleware"
	"shoplink-platform/internal/model"
	"shoplink-platform/internal/resolver"
	"shoplink-platform/internal/shortcode"
	"shoplink-platform/pkg/database"
	auth "shoplink-platform/pkg/jwt"
	"shoplink-platform/pkg/logger"
	"shoplink-platform/pkg/redis"
	"shoplink-platform/web"

	_ "shoplink-platform/docs"
)

// @title Shoplink API
// @version 1.0
// @description Affiliate short links with native app deep linking.
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

func main() {
	logger.InitLogger()
	defer func() {
		if err := logger.Logger.Sync(); err != nil {
			fmt.Println("log sync failed:", err)
		}
	}()
	sugaredLogger := zap.S()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		sugaredLogger.Fatalf("failed to load config: %v", err)
	}

	db, err := database.InitMySQL(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
	if err != nil {
		sugaredLogger.Fatalf("failed to init database: %v", err)
	}
	sugaredLogger.Info("database connected")

	if err := db.AutoMigrate(&model.User{}, &model.Link{}, &model.DailyClick{}); err != nil {
		sugaredLogger.Fatalf("failed to migrate database: %v", err)
	}
	sugaredLogger.Info("database migrated")

	var rdb *redisClient.Client
	if cfg.Cache.Host != "" {
		rdb, err = redis.NewRedisClient(&redis.Options{
			Host: cfg.Cache.Host, Port: cfg.Cache.Port, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
		})
		if err != nil {
			sugaredLogger.Warnf("cache unavailable: %v", err)
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					sugaredLogger.Errorf("failed to close redis: %v", err)
				}
			}()
			sugaredLogger.Info("cache connected")
		}
	}

	codeGenerator := shortcode.NewGenerator(db, sugaredLogger)
	urlResolver := resolver.New(
		time.Duration(cfg.Resolver.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Resolver.JITTimeoutSeconds)*time.Second,
		sugaredLogger,
	)

	tokenManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)

	if err := createAdminUser(db); err != nil {
		sugaredLogger.Errorf("failed to create admin user: %v", err)
	}

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapRecovery(logger.Logger, true))
	router.Use(middleware.GinZapLogger(logger.Logger))
	router.Use(middleware.RequestID())

	router.SetHTMLTemplate(web.Templates())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authMiddleware := middleware.AuthMiddleware(tokenManager)
	adminMiddleware := middleware.AdminMiddleware()
	router.Use(middleware.RateLimit(rdb, &cfg.RateLimit))

	linkHandler := handler.NewLinkHandler(db, rdb, codeGenerator, urlResolver, cfg.App.BaseURL, sugaredLogger)
	authHandler := handler.NewAuthHandler(db, rdb, tokenManager)

	registerRoutes(router, linkHandler, authHandler, authMiddleware, adminMiddleware)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sugaredLogger.Infof("server listening on :%d", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugaredLogger.Fatalf("server failed: %v", err)
	}
}

func registerRoutes(
	router *gin.Engine,
	linkHandler *handler.LinkHandler,
	authHandler *handler.AuthHandler,
	authMiddleware, adminMiddleware gin.HandlerFunc,
) {
	router.GET("/", linkHandler.IndexPage)
	router.GET("/health", linkHandler.HealthCheck)
	router.GET("/:code", linkHandler.Redirect)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("/api")
	api.Use(authMiddleware)
	{
		api.GET("/me", authHandler.GetCurrentUser)
		api.POST("/shorten", linkHandler.CreateShortLink)
		api.GET("/links", linkHandler.GetLinks)
		api.GET("/links/:code/clicks", linkHandler.GetClickStats)
		api.GET("/stats", linkHandler.GetStats)
	}

	admin := api.Group("")
	admin.Use(adminMiddleware)
	{
		admin.PUT("/links/:code", linkHandler.ToggleLink)
		admin.DELETE("/links/:code", linkHandler.DeleteLink)
	}
}

func createAdminUser(db *gorm.DB) error {
	var existing model.User
	if err := db.Where("username = ?", "admin").First(&existing).Error; err == nil {
		return nil
	}

	admin := model.User{Username: "admin", Email: "admin@shoplink.to", Role: "admin", IsActive: true}
	if err := admin.SetPassword("admin"); err != nil {
		return err
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	zap.S().Infow("default admin user created", "username", "admin")
	return nil
}
