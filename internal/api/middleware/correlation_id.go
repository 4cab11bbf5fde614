package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader 是请求与响应中携带关联 ID 的头。
const CorrelationIDHeader = "X-Correlation-ID"

const (
	correlationIDKey    = "correlationID"
	maxCorrelationIDLen = 128
)

// CorrelationIDMiddleware 沿用客户端传入的关联 ID，缺失或不合法时生成新的 UUID。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// GetCorrelationID 从上下文中取出 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	if id, ok := c.Get(correlationIDKey); ok {
		s, _ := id.(string)
		return s
	}
	return ""
}

// 只接受可打印 ASCII，避免把任意内容写进日志。
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
