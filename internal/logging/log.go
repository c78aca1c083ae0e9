// Package logging は zerolog ベースのロガーの生成とコンテキスト受け渡しを提供します。
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key byte

var loggerKey = key(1)

// New はレベルと出力形式を指定してルートロガーを作成します。
// 不正なレベル名は info として扱います。
func New(w io.Writer, level, format string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Lookup はコンテキストに埋め込まれたロガーを返します。
func Lookup(ctx context.Context) (zerolog.Logger, bool) {
	logger, ok := ctx.Value(loggerKey).(zerolog.Logger)
	return logger, ok
}

func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := Lookup(ctx); ok {
		return logger
	}
	return log.Logger
}

// RequestLogger はリクエストごとにアクセスログを出力し、
// 後続のハンドラーが FromContext で使えるようロガーを埋め込みます。
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		ev := reqLog.Info()
		if status >= 500 {
			ev = reqLog.Error()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
