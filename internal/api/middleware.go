package api

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one structured line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}

				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// limitFavorites throttles favorite submissions per client address.
// RealIP has already replaced RemoteAddr with the forwarded address when present.
func (s *Server) limitFavorites(ctx huma.Context, next func(huma.Context)) {
	if s.favoriteLimiter == nil {
		next(ctx)
		return
	}

	key := clientKey(ctx.RemoteAddr())
	if !s.favoriteLimiter.Allow(key) {
		s.logger.Warn("favorite submissions throttled", slog.String("client", key))
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many favorite requests, try again shortly") //nolint:errcheck // Response already committed
		return
	}
	next(ctx)
}

func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
