package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shoplink-platform/internal/model"
	auth "shoplink-platform/pkg/jwt"
)

// AuthHandler is the authenticated-session provider consumed by the link
// creation and listing endpoints.
type AuthHandler struct {
	db         *gorm.DB
	redis      *redis.Client
	jwtManager *auth.TokenManager
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, redisClient *redis.Client, jwtManager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{db: db, redis: redisClient, jwtManager: jwtManager}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"admin"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"newuser"`
	Email    string `json:"email" binding:"required,email" example:"newuser@example.com"`
	Password string `json:"password" binding:"required,min=6" example:"password123"`
}

type AuthResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// Login godoc
// @Summary Log in
// @Description Exchange username and password for a JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Param account body LoginRequest true "credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} gin.H
// @Failure 401 {object} gin.H
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	var user model.User
	if !h.loadCachedUser(req.Username, &user) {
		if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong username or password"})
			return
		}
		h.cacheUser(&user)
	}

	if !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong username or password"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		zap.S().Errorf("failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	go h.db.Model(&user).Update("last_login", time.Now())
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// Register godoc
// @Summary Register
// @Description Create a user and return a JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Param account body RegisterRequest true "registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} gin.H
// @Failure 500 {object} gin.H
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	var count int64
	h.db.Model(&model.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
		return
	}

	user := model.User{Username: req.Username, Email: req.Email, IsActive: true, Role: "user"}
	if err := user.SetPassword(req.Password); err != nil {
		zap.S().Errorf("failed to hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	if err := h.db.Create(&user).Error; err != nil {
		zap.S().Errorf("failed to create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	h.cacheUser(&user)

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		zap.S().Errorf("failed to generate token after registration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// GetCurrentUser godoc
// @Summary Current user
// @Tags Auth
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.User
// @Failure 401 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /api/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) loadCachedUser(username string, user *model.User) bool {
	if h.redis == nil {
		return false
	}
	raw, err := h.redis.Get(context.Background(), "user:"+username).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), user) == nil
}

func (h *AuthHandler) cacheUser(user *model.User) {
	if h.redis == nil {
		return
	}
	raw, _ := json.Marshal(user)
	h.redis.Set(context.Background(), "user:"+user.Username, raw, 1*time.Hour)
}
