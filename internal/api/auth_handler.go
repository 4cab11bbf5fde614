package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rev2018/placement-tracker/internal/account"
	"github.com/rev2018/placement-tracker/internal/api/middleware"
	"github.com/rev2018/placement-tracker/internal/auth"
	"github.com/rev2018/placement-tracker/internal/metrics"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

// LoginGuard 配置登录限流与失败锁定。
type LoginGuard struct {
	RateLimitPerHour int
	LockThreshold    int
	LockTTL          time.Duration
}

// AuthHandler 处理注册、登录、刷新与退出。
type AuthHandler struct {
	accounts     *account.Store
	authService  *auth.AuthService
	redis        authRedis
	guard        LoginGuard
	cookieDomain string
	now          func() time.Time
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(accounts *account.Store, authService *auth.AuthService, redisClient authRedis, guard LoginGuard, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		authService:  authService,
		redis:        redisClient,
		guard:        guard,
		cookieDomain: cookieDomain,
		now:          time.Now,
	}
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 创建新账号，成功返回 201 与用户 ID。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	id, err := h.accounts.CreateAccount(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		respondError(c, err, gin.H{"full_name": req.FullName, "email": req.Email})
		return
	}

	middleware.LoggerFromContext(c).Info("user registered", slog.Uint64("user_id", uint64(id)))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      uint   `json:"user_id"`
	FullName    string `json:"full_name"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	email := account.NormalizeEmail(req.Email)
	logger := middleware.LoggerFromContext(c)

	// 速率限制：每 IP+邮箱 每小时
	rateKey := "rate:login:" + c.ClientIP() + ":" + email + ":" + h.now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if count > int64(h.guard.RateLimitPerHour) {
		metrics.ObserveLogin("rate_limited")
		TooManyRequests(c, "rate limit exceeded")
		return
	}

	ttl, err := h.redis.TTL(ctx, lockKey(email)).Result()
	if err != nil {
		logger.Warn("login lock state unavailable", slog.Any("error", err))
	}
	if ttl > 0 {
		metrics.ObserveLogin("locked")
		TooManyRequests(c, "account temporarily locked")
		return
	}

	user, err := h.accounts.VerifyCredentials(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			metrics.ObserveLogin("invalid")
			if ferr := h.incrementLoginFail(ctx, email); ferr != nil {
				logger.Warn("record login failure", slog.Any("error", ferr))
			}
		}
		respondError(c, err, nil)
		return
	}

	if err := h.redis.Del(ctx, failKey(email)).Err(); err != nil {
		logger.Warn("reset login failures", slog.Any("error", err))
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.ID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	metrics.ObserveLogin("success")
	logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)))
	h.replyWithTokenPair(c, tokenPair, user.ID, user.FullName)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌随即吊销。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	claims, ok := h.refreshClaims(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c, "unauthorized")
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c)
		return
	}

	user, err := h.accounts.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			Unauthorized(c, "unauthorized")
			return
		}
		respondError(c, err, nil)
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.ID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.replyWithTokenPair(c, tokenPair, user.ID, user.FullName)
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := h.refreshClaims(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.revokeRefreshToken(c.Request.Context(), key, claims.ExpiresAt); err != nil {
		middleware.LoggerFromContext(c).Error("logout revoke token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cookieDomain),
	})
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) refreshClaims(c *gin.Context) (*auth.TokenClaims, bool) {
	token := extractRefreshToken(c)
	if token == "" {
		return nil, false
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		middleware.LoggerFromContext(c).Info("refresh token invalid", slog.Any("error", err))
		return nil, false
	}
	if claims.TokenType != auth.TokenTypeRefresh || claims.ID == "" || claims.UserID == 0 {
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, tokenPair auth.TokenPair, userID uint, fullName string) {
	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
		UserID:      userID,
		FullName:    fullName,
	})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	ttl := h.authService.RefreshTokenTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   int(ttl.Seconds()),
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cookieDomain),
		Expires:  h.now().Add(ttl),
	})
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	ttl := h.authService.RefreshTokenTTL()
	if expiresAt != nil {
		ttl = expiresAt.Time.Sub(h.now())
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	count, err := incrWithTTL(ctx, h.redis, failKey(email), h.guard.LockTTL)
	if err != nil {
		return err
	}
	if count >= int64(h.guard.LockThreshold) {
		return h.redis.Set(ctx, lockKey(email), "1", h.guard.LockTTL).Err()
	}
	return nil
}

func lockKey(email string) string { return "lock:login:" + email }
func failKey(email string) string { return "lock:login:fail:" + email }

func extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
