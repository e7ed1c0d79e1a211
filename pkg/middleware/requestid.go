package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/edgeapi/pkg/httpclient"
)

// RequestIDHeader はリクエストIDを運ぶHTTPヘッダー。
const RequestIDHeader = "X-Request-ID"

// requestIDKey はGinコンテキストにリクエストIDを格納するキー。
const requestIDKey = "request_id"

// RequestID はリクエストIDを付与するGinミドルウェアを返す。
// 受信ヘッダーに値があればそれを使い、無ければUUIDを生成する。
// IDはレスポンスヘッダーに返し、外部呼び出しにも伝播する。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。未設定の場合は空文字列。
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
