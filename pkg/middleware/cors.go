package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsAllowedMethods はブラウザに許可するメソッド。
var corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

// corsAllowedHeaders はブラウザが送信してよいリクエストヘッダー。
var corsAllowedHeaders = []string{"Content-Type", "Cf-Access-Jwt-Assertion", RequestIDHeader}

// corsMaxAge はプリフライト結果をキャッシュしてよい秒数。
const corsMaxAge = "86400"

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// 応答はOriginによって変わるため、許可の有無に関わらずVary: Originを付ける。
// プリフライト（OPTIONS）はオリジンに関わらず204で打ち切る。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	methods := strings.Join(corsAllowedMethods, ", ")
	headers := strings.Join(corsAllowedHeaders, ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
