package middleware

import (
	"log/slog"
	"net/http"

	"github.com/salonsphere/auth-service/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id
// and user_id and stores it in the context. Downstream code retrieves it
// with logger.FromContext(ctx).
//
// Mount AFTER RequestLogging, which sets the correlation_id.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// The auth middleware key wins over the X-User-ID header, which
			// only internal callers set.
			userID := UserIDFromContext(ctx)
			if userID == "" {
				userID = r.Header.Get("X-User-ID")
			}
			if userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
