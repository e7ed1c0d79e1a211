package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edgeapi/internal/access"
)

// identityKey はGinコンテキストに検証済みIdentityを格納するキー。
const identityKey = "access_identity"

// AccessVerifier はリクエストのアクセストークンを検証するもの。
type AccessVerifier interface {
	Verify(r *http.Request) access.Decision
}

// RequireAccess はアクセストークンを検証するGinミドルウェアを返す。
// 検証に失敗した場合は理由をログに残し、403 {"error":"Unauthorized"} で打ち切る。
// 理由はレスポンスに含めない。
func RequireAccess(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch d := verifier.Verify(c.Request).(type) {
		case access.Authorized:
			c.Set(identityKey, d.Identity)
			Logger(c).Debug().Str("subject", d.Identity.Subject).Msg("アクセストークンを検証")
			c.Next()
		case access.Unauthorized:
			Logger(c).Warn().Err(d.Reason).Msg("アクセストークンの検証に失敗")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		default:
			Logger(c).Error().Msgf("未知の検証結果: %T", d)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		}
	}
}

// GetIdentity はGinコンテキストから検証済みIdentityを取得する。
// RequireAccessミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (access.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return access.Identity{}, false
	}
	id, ok := v.(access.Identity)
	return id, ok
}
