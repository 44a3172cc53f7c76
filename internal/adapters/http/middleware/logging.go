package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestLogger はリクエストごとのロガーを用意し、完了時にアクセスログを出力します。
func RequestLogger(logger zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RequestIDHandler("request_id", "X-Request-Id"),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.RemoteAddrHandler("remote_addr"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			ev := hlog.FromRequest(r).Info()
			if status >= http.StatusInternalServerError {
				ev = hlog.FromRequest(r).Warn()
			}
			ev.Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request completed")
		}),
	}
}
