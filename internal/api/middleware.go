package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jbweber/homelab/roster/internal/logging"
)

// requestLogger logs one line per request and hands a request scoped logger
// to handlers through the context. It expects middleware.RequestID upstream.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := a.log.With(logging.RequestID(middleware.GetReqID(r.Context())))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.ToContext(r.Context(), log)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("request",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(status),
			logging.Bytes(ww.BytesWritten()),
			logging.Duration(time.Since(start)),
		)
	})
}
