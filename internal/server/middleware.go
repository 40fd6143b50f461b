package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// requestLogger writes one line per request after the handler returns.
func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				log.RequestIDKey, chimiddleware.GetReqID(r.Context()),
				log.MethodKey, r.Method,
				log.PathKey, r.URL.Path,
				log.StatusKey, status,
				log.RemoteKey, r.RemoteAddr,
				log.DurationMsKey, time.Since(start).Milliseconds(),
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

// recovery turns a handler panic into a 500 with a detail body.
func recovery(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered in request handler",
						log.RequestIDKey, chimiddleware.GetReqID(r.Context()),
						log.MethodKey, r.Method,
						log.PathKey, r.URL.Path,
						"panic", fmt.Sprint(rec),
						log.StacktraceKey, string(debug.Stack()),
					)
					writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
