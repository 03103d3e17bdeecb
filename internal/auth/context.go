package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const tenantIDKey contextKey = "tenantID"

// ContextWithTenantID returns a new context that carries the caller's tenant scope.
func ContextWithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantIDFromContext retrieves the tenant scope from the context, if any.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(tenantIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RequireTenantID returns the tenant scope or an error when the request is
// not tenant-scoped.
func RequireTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := TenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("tenant id is required")
	}
	return id, nil
}
