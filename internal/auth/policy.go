package auth

import (
	"sync"

	"github.com/authgate/authgate/internal/model"
)

type PolicyKind int

const (
	// PolicyPublic bypasses client, token and role validation entirely.
	PolicyPublic PolicyKind = iota
	PolicyAuthenticated
	PolicyRequireRole
	PolicyRequireAdmin
	PolicyRequireSuperAdmin
)

// AccessPolicy is the declared authorization requirement of a route.
// Attached at router setup, read-only at request time.
type AccessPolicy struct {
	Kind  PolicyKind
	Roles []model.Role // only for PolicyRequireRole

	// RefreshToken routes expect a refresh-type bearer token instead of
	// an access token (/auth/refresh is the only one).
	RefreshToken bool
}

func Public() AccessPolicy            { return AccessPolicy{Kind: PolicyPublic} }
func Authenticated() AccessPolicy     { return AccessPolicy{Kind: PolicyAuthenticated} }
func RequireAdmin() AccessPolicy      { return AccessPolicy{Kind: PolicyRequireAdmin} }
func RequireSuperAdmin() AccessPolicy { return AccessPolicy{Kind: PolicyRequireSuperAdmin} }

func RequireRoles(roles ...model.Role) AccessPolicy {
	return AccessPolicy{Kind: PolicyRequireRole, Roles: roles}
}

func RefreshOnly() AccessPolicy {
	return AccessPolicy{Kind: PolicyAuthenticated, RefreshToken: true}
}

// Allows runs the role decision table against the caller's role.
func (p AccessPolicy) Allows(role model.Role) bool {
	switch p.Kind {
	case PolicyPublic:
		return true
	case PolicyAuthenticated:
		return true // any valid identity
	case PolicyRequireRole:
		for _, r := range p.Roles {
			if r == role {
				return true
			}
		}
		// superadmin passes every named-role check
		return role == model.RoleSuperAdmin
	case PolicyRequireAdmin:
		return role == model.RoleAdmin || role == model.RoleSuperAdmin
	case PolicyRequireSuperAdmin:
		return role == model.RoleSuperAdmin
	default:
		return false
	}
}

// RequiredRoles names the roles that would satisfy the policy, for the
// structured InsufficientRole payload.
func (p AccessPolicy) RequiredRoles() []string {
	switch p.Kind {
	case PolicyRequireRole:
		out := make([]string, 0, len(p.Roles))
		for _, r := range p.Roles {
			out = append(out, string(r))
		}
		return out
	case PolicyRequireAdmin:
		return []string{string(model.RoleAdmin), string(model.RoleSuperAdmin)}
	case PolicyRequireSuperAdmin:
		return []string{string(model.RoleSuperAdmin)}
	default:
		return nil
	}
}

// PolicyTable is the explicit route-registration table consulted by the
// auth guard: method + route pattern -> AccessPolicy. Routes never
// registered fall back to AuthenticatedOnly (deny-by-default).
type PolicyTable struct {
	mu       sync.RWMutex
	policies map[string]AccessPolicy
}

func NewPolicyTable() *PolicyTable {
	return &PolicyTable{policies: make(map[string]AccessPolicy)}
}

func (t *PolicyTable) Register(method, path string, policy AccessPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[method+" "+path] = policy
}

func (t *PolicyTable) Lookup(method, path string) AccessPolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.policies[method+" "+path]; ok {
		return p
	}
	return Authenticated()
}
