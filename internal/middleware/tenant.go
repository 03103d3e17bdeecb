package middleware

import (
	"net/http"
	"strings"

	"github.com/jagjerez/maintenance-app-sub001/internal/auth"

	"github.com/google/uuid"
)

// TenantHeader carries the caller's tenant id on every API request.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware resolves the tenant id header into the request context.
// Requests without a parseable tenant id pass through unscoped; handlers
// that require a tenant reject them.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(TenantHeader))
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(auth.ContextWithTenantID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
