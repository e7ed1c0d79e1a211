package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// loggerKey はGinコンテキストにリクエスト単位のロガーを格納するキー。
const loggerKey = "logger"

// RequestLogger はリクエスト単位のロガーを用意し、処理後に1行のアクセスログを出力する
// Ginミドルウェアを返す。レベルは5xxがerror、4xxがwarn、それ以外がinfo。
// RequestIDより後に登録する。
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := base.With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var e *zerolog.Event
		switch {
		case status >= 500:
			e = l.Error()
		case status >= 400:
			e = l.Warn()
		default:
			e = l.Info()
		}
		if len(c.Errors) > 0 {
			e = e.Str("errors", c.Errors.String())
		}
		e.Int("status", status).
			Dur("latency", time.Since(start)).
			Int("size", c.Writer.Size()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("request")
	}
}

// Logger はリクエスト単位のロガーを返す。
// RequestLoggerが適用されていない場合はリクエストコンテキストのロガー（通常は無効）を返す。
func Logger(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Ctx(c.Request.Context())
}
