// Package tenancy carries the organization a request acts for. Every
// availability record, appointment and configuration is scoped by it.
package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const orgKey ctxKey = "booking.org_id"

// Header is the request header that names the tenant on API routes.
const Header = "X-Org-Id"

// WithOrgID stores the org id in context. Surrounding whitespace is dropped.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, strings.TrimSpace(orgID))
}

// OrgIDFromContext extracts the org id if present.
func OrgIDFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(orgKey).(string)
	return orgID, ok && orgID != ""
}
