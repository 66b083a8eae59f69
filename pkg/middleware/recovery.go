package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery はパニックから回復し、500エラーを返すGinミドルウェアを返す。
// WebSocketにアップグレード済みの接続では応答を書けないため、ログのみ残す。
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("パニックから回復しました")
				if c.IsWebsocket() && c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "内部サーバーエラーが発生しました",
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
// クエリ文字列にはトークンが含まれ得るため、パスだけを記録する。
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("リクエストを処理しました")
	}
}
