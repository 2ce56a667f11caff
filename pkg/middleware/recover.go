// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"apgate/pkg/apierr"
)

func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic", "err", rec, "stack", string(debug.Stack()))
					apierr.Write(w, http.StatusInternalServerError, "internal-error", "ServerError", "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
