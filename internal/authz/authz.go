// Package authz implements the deterministic authorization decision engine
// of spec.md §4.5: effective-permission resolution, an ordered single check,
// bulk evaluation, and wildcard code matching. The engine is pure
// repository-backed logic with no HTTP dependency, so it is independently
// unit-testable — modeled on the teacher's pkg/auth.PermissionChecker, but
// extended with the resource-grant/direct-grant/role-permission pipeline the
// teacher's checker never had.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

// Sources an EffectivePermission or a Check decision may attribute a grant
// to, per spec.md §4.5.1/§4.5.2.
const (
	SourceDirectGrant = "direct-grant"
	SourceResource    = "resource-grant"
)

// Engine evaluates authorization decisions for a subject against the
// persisted role, grant, and resource-grant tables.
type Engine struct {
	roles           repositories.RoleRepository
	permissions     repositories.PermissionRepository
	rolePermissions repositories.RolePermissionRepository
	userRoles       repositories.UserRoleRepository
	userGrants      repositories.UserPermissionGrantRepository
	resourceGrants  repositories.ResourceGrantRepository

	now func() time.Time
}

// New constructs an Engine over the given repositories.
func New(
	roles repositories.RoleRepository,
	permissions repositories.PermissionRepository,
	rolePermissions repositories.RolePermissionRepository,
	userRoles repositories.UserRoleRepository,
	userGrants repositories.UserPermissionGrantRepository,
	resourceGrants repositories.ResourceGrantRepository,
) *Engine {
	return &Engine{
		roles:           roles,
		permissions:     permissions,
		rolePermissions: rolePermissions,
		userRoles:       userRoles,
		userGrants:      userGrants,
		resourceGrants:  resourceGrants,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// EffectivePermission is one entry of a subject's effective permission set
// (spec.md §4.5.1).
type EffectivePermission struct {
	Code       string `json:"code"`
	Source     string `json:"source"`
	Scope      string `json:"scope,omitempty"`
	ScopeValue string `json:"scopeValue,omitempty"`
}

// CheckRequest describes a single permission check (spec.md §4.5.2).
type CheckRequest struct {
	Permission   string
	ResourceType string
	ResourceID   string
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const reasonDenied = "no matching permission"

// activeUserRoles returns the roles currently assigned to userID, in the
// order the edges were recorded, skipping inert (expired) edges.
func (e *Engine) activeUserRoles(ctx context.Context, userID string) ([]*models.Role, error) {
	edges, err := e.userRoles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: list user roles: %w", err)
	}

	now := e.now()
	var roles []*models.Role
	for _, edge := range edges {
		if !edge.Active(now) {
			continue
		}
		role, err := e.roles.GetByID(ctx, edge.RoleID)
		if err != nil {
			if err == repositories.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("authz: load role %s: %w", edge.RoleID, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Check evaluates a single request against the ordered rules of spec.md
// §4.5.2: resource grant, then direct grant, then role permission, first
// match wins.
func (e *Engine) Check(ctx context.Context, userID string, req CheckRequest) (CheckResult, error) {
	if req.ResourceType != "" && req.ResourceID != "" {
		allowed, reason, err := e.checkResourceGrant(ctx, userID, req)
		if err != nil {
			return CheckResult{}, err
		}
		if allowed {
			return CheckResult{Allowed: true, Reason: reason}, nil
		}
	}

	allowed, reason, err := e.checkDirectGrant(ctx, userID, req)
	if err != nil {
		return CheckResult{}, err
	}
	if allowed {
		return CheckResult{Allowed: true, Reason: reason}, nil
	}

	allowed, reason, err = e.checkRolePermission(ctx, userID, req)
	if err != nil {
		return CheckResult{}, err
	}
	if allowed {
		return CheckResult{Allowed: true, Reason: reason}, nil
	}

	return CheckResult{Allowed: false, Reason: reasonDenied}, nil
}

func (e *Engine) checkResourceGrant(ctx context.Context, userID string, req CheckRequest) (bool, string, error) {
	permission, err := e.permissions.GetByCode(ctx, req.Permission)
	if err != nil {
		if err == repositories.ErrNotFound {
			return false, "", nil
		}
		return false, "", fmt.Errorf("authz: load permission %s: %w", req.Permission, err)
	}

	grant, err := e.resourceGrants.Find(ctx, userID, req.ResourceType, req.ResourceID, permission.ID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return false, "", nil
		}
		return false, "", fmt.Errorf("authz: find resource grant: %w", err)
	}
	if !grant.Active(e.now()) {
		return false, "", nil
	}

	return true, fmt.Sprintf("resource-grant for %s/%s", req.ResourceType, req.ResourceID), nil
}

func (e *Engine) checkDirectGrant(ctx context.Context, userID string, req CheckRequest) (bool, string, error) {
	grants, err := e.userGrants.ListByUser(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("authz: list user grants: %w", err)
	}

	now := e.now()
	for _, grant := range grants {
		if !grant.Active(now) {
			continue
		}
		permission, err := e.permissions.GetByID(ctx, grant.PermissionID)
		if err != nil {
			if err == repositories.ErrNotFound {
				continue
			}
			return false, "", fmt.Errorf("authz: load permission %s: %w", grant.PermissionID, err)
		}
		if !Matches(permission.Code, req.Permission) {
			continue
		}
		switch grant.ScopeType {
		case models.ScopeAll:
			return true, fmt.Sprintf("direct grant: %s", permission.Code), nil
		case models.ScopeRecord:
			if grant.ScopeValue != "" && grant.ScopeValue == req.ResourceID {
				return true, fmt.Sprintf("direct grant: %s", permission.Code), nil
			}
		}
	}
	return false, "", nil
}

func (e *Engine) checkRolePermission(ctx context.Context, userID string, req CheckRequest) (bool, string, error) {
	roles, err := e.activeUserRoles(ctx, userID)
	if err != nil {
		return false, "", err
	}

	for _, role := range roles {
		edges, err := e.rolePermissions.ListByRole(ctx, role.ID)
		if err != nil {
			return false, "", fmt.Errorf("authz: list role permissions for %s: %w", role.Name, err)
		}
		for _, edge := range edges {
			permission, err := e.permissions.GetByID(ctx, edge.PermissionID)
			if err != nil {
				if err == repositories.ErrNotFound {
					continue
				}
				return false, "", fmt.Errorf("authz: load permission %s: %w", edge.PermissionID, err)
			}
			if Matches(permission.Code, req.Permission) {
				return true, fmt.Sprintf("role:%s grants %s", role.Name, permission.Code), nil
			}
		}
	}
	return false, "", nil
}

// Evaluate runs Check against each request independently, preserving input
// order with no short-circuiting (spec.md §4.5.4).
func (e *Engine) Evaluate(ctx context.Context, userID string, reqs []CheckRequest) ([]CheckResult, error) {
	results := make([]CheckResult, len(reqs))
	for i, req := range reqs {
		result, err := e.Check(ctx, userID, req)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	return results, nil
}

// Effective returns the subject's full effective permission set (spec.md
// §4.5.1/§4.5.5): the union of active role permissions and active direct
// grants. Expired grants are omitted; duplicates are kept only when their
// source or scope differ.
func (e *Engine) Effective(ctx context.Context, userID string) ([]EffectivePermission, error) {
	var out []EffectivePermission
	seen := make(map[string]bool)

	add := func(p EffectivePermission) {
		key := p.Code + "|" + p.Source + "|" + p.Scope + "|" + p.ScopeValue
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}

	roles, err := e.activeUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		edges, err := e.rolePermissions.ListByRole(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("authz: list role permissions for %s: %w", role.Name, err)
		}
		for _, edge := range edges {
			permission, err := e.permissions.GetByID(ctx, edge.PermissionID)
			if err != nil {
				if err == repositories.ErrNotFound {
					continue
				}
				return nil, fmt.Errorf("authz: load permission %s: %w", edge.PermissionID, err)
			}
			add(EffectivePermission{
				Code:   permission.Code,
				Source: fmt.Sprintf("role:%s", role.Name),
			})
		}
	}

	grants, err := e.userGrants.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: list user grants: %w", err)
	}
	now := e.now()
	for _, grant := range grants {
		if !grant.Active(now) {
			continue
		}
		permission, err := e.permissions.GetByID(ctx, grant.PermissionID)
		if err != nil {
			if err == repositories.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("authz: load permission %s: %w", grant.PermissionID, err)
		}
		add(EffectivePermission{
			Code:       permission.Code,
			Source:     SourceDirectGrant,
			Scope:      grant.ScopeType,
			ScopeValue: grant.ScopeValue,
		})
	}

	return out, nil
}
