package middleware

import (
	"net/http"

	"github.com/blocksweep/blocksweep/internal/audit"
)

// AuditSource tags audit events emitted while serving a request with source.
func AuditSource(source string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(audit.WithSource(r.Context(), source)))
		})
	}
}
