package middleware

import (
	"context"
	"net/http"

	"praxisdesk/ms_invoicing/internal/infrastructure/config"
)

// ExtendedTimeout wraps a handler to apply an extended timeout for batch
// builds: a batch of invoices issues a long linear sequence of engine
// calls per item and needs more than the default write timeout.
func ExtendedTimeout(cfg config.HTTPSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.WriteTimeoutBulk)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
