package authz

import (
	"github.com/pressdesk/pressdesk/internal/identity"
)

// IdentitySource supplies the reconciled current admin, or nil when
// nobody is authenticated. The session reconciler is the production
// implementation; tests substitute their own.
type IdentitySource interface {
	Current() *identity.Admin
}

// Resolver answers capability and route-access questions for the
// current identity. It holds no mutable state of its own.
type Resolver struct {
	source IdentitySource
	matrix Matrix
	paths  PathMap
}

// NewResolver creates a resolver. The matrix must already be validated.
func NewResolver(source IdentitySource, matrix Matrix, paths PathMap) *Resolver {
	return &Resolver{source: source, matrix: matrix, paths: paths}
}

// Can reports whether the current identity holds the capability.
// Always false when unauthenticated.
func (r *Resolver) Can(cap Capability) bool {
	admin := r.source.Current()
	if admin == nil {
		return false
	}
	return r.matrix.HasPermission(admin.Role, cap)
}

// CanAccess reports whether the current identity may view the admin
// route. Unauthenticated callers are denied outright; otherwise the
// path map's allow-unmapped / deny-missing-capability policy applies.
func (r *Resolver) CanAccess(path string) bool {
	admin := r.source.Current()
	if admin == nil {
		return false
	}
	cap, kind := r.paths.RequiredCapability(path)
	switch kind {
	case RuleUnmapped, RuleAlways:
		return true
	default:
		return r.matrix.HasPermission(admin.Role, cap)
	}
}
