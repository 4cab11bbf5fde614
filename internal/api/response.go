package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rev2018/placement-tracker/internal/account"
	"github.com/rev2018/placement-tracker/internal/api/middleware"
	"github.com/rev2018/placement-tracker/internal/application"
	"github.com/rev2018/placement-tracker/internal/errcode"
)

const invalidCredentialsMessage = "invalid email or password"

func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.AuthenticationFailed})
}

func Unauthorized(c *gin.Context, msg string) {
	Error(c, http.StatusUnauthorized, errcode.AuthenticationFailed, msg)
}
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, errcode.Validation, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, errcode.AccessDenied, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, errcode.ResourceMissing, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, errcode.DuplicateEmail, msg) }
func TooManyRequests(c *gin.Context, msg string) {
	Error(c, http.StatusTooManyRequests, errcode.RateLimited, msg)
}
func Internal(c *gin.Context) { Error(c, http.StatusInternalServerError, errcode.SystemError, "internal error") }

// respondError 把领域错误映射为 HTTP 响应。submitted 会随校验错误原样返回，便于前端回填表单。
// 未识别的错误只记录日志，不向客户端暴露细节。
func respondError(c *gin.Context, err error, submitted any) {
	var verr *errcode.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{
			"error":  "validation failed",
			"code":   errcode.Validation,
			"fields": verr.Fields,
		}
		if submitted != nil {
			body["submitted"] = submitted
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, account.ErrDuplicateEmail):
		Conflict(c, "email already registered")
	case errors.Is(err, account.ErrInvalidCredentials):
		Unauthorized(c, invalidCredentialsMessage)
	case errors.Is(err, application.ErrNotFound):
		NotFound(c, "application not found")
	default:
		middleware.LoggerFromContext(c).Error("request failed", slog.Any("error", err))
		Internal(c)
	}
}
