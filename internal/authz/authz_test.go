package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

// --- in-memory fakes, just enough surface for the engine ---

type fakeRoles struct{ byID map[string]*models.Role }

func (f *fakeRoles) Create(ctx context.Context, r *models.Role) error { f.byID[r.ID] = r; return nil }
func (f *fakeRoles) GetByID(ctx context.Context, id string) (*models.Role, error) {
	if r, ok := f.byID[id]; ok {
		return r, nil
	}
	return nil, repositories.ErrNotFound
}
func (f *fakeRoles) GetByName(ctx context.Context, name string) (*models.Role, error) {
	for _, r := range f.byID {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (f *fakeRoles) Update(ctx context.Context, r *models.Role) error { return nil }
func (f *fakeRoles) Delete(ctx context.Context, id string) error      { return nil }
func (f *fakeRoles) List(ctx context.Context, filter interface{}) ([]*models.Role, error) {
	return nil, nil
}
func (f *fakeRoles) Count(ctx context.Context, filter interface{}) (int64, error) { return 0, nil }

type fakePermissions struct{ byID map[string]*models.Permission }

func (f *fakePermissions) Create(ctx context.Context, p *models.Permission) error {
	f.byID[p.ID] = p
	return nil
}
func (f *fakePermissions) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}
func (f *fakePermissions) GetByCode(ctx context.Context, code string) (*models.Permission, error) {
	for _, p := range f.byID {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (f *fakePermissions) Update(ctx context.Context, p *models.Permission) error { return nil }
func (f *fakePermissions) Delete(ctx context.Context, id string) error           { return nil }
func (f *fakePermissions) List(ctx context.Context, filter interface{}) ([]*models.Permission, error) {
	return nil, nil
}
func (f *fakePermissions) Count(ctx context.Context, filter interface{}) (int64, error) {
	return 0, nil
}

type fakeRolePermissions struct{ byRole map[string][]*models.RolePermission }

func (f *fakeRolePermissions) Grant(ctx context.Context, edge *models.RolePermission) error {
	f.byRole[edge.RoleID] = append(f.byRole[edge.RoleID], edge)
	return nil
}
func (f *fakeRolePermissions) Revoke(ctx context.Context, roleID, permissionID string) error {
	return nil
}
func (f *fakeRolePermissions) ListByRole(ctx context.Context, roleID string) ([]*models.RolePermission, error) {
	return f.byRole[roleID], nil
}
func (f *fakeRolePermissions) ListByRoles(ctx context.Context, roleIDs []string) ([]*models.RolePermission, error) {
	var out []*models.RolePermission
	for _, id := range roleIDs {
		out = append(out, f.byRole[id]...)
	}
	return out, nil
}

type fakeUserRoles struct{ byUser map[string][]*models.UserRole }

func (f *fakeUserRoles) Grant(ctx context.Context, edge *models.UserRole) error {
	f.byUser[edge.UserID] = append(f.byUser[edge.UserID], edge)
	return nil
}
func (f *fakeUserRoles) Revoke(ctx context.Context, userID, roleID string) error { return nil }
func (f *fakeUserRoles) ListByUser(ctx context.Context, userID string) ([]*models.UserRole, error) {
	return f.byUser[userID], nil
}

type fakeUserGrants struct{ byUser map[string][]*models.UserPermissionGrant }

func (f *fakeUserGrants) Grant(ctx context.Context, g *models.UserPermissionGrant) error {
	f.byUser[g.UserID] = append(f.byUser[g.UserID], g)
	return nil
}
func (f *fakeUserGrants) Revoke(ctx context.Context, userID, permissionID string) error { return nil }
func (f *fakeUserGrants) ListByUser(ctx context.Context, userID string) ([]*models.UserPermissionGrant, error) {
	return f.byUser[userID], nil
}

type fakeResourceGrants struct{ grants []*models.ResourceGrant }

func (f *fakeResourceGrants) Grant(ctx context.Context, g *models.ResourceGrant) error {
	f.grants = append(f.grants, g)
	return nil
}
func (f *fakeResourceGrants) Revoke(ctx context.Context, userID, resourceType, resourceID, permissionID string) error {
	return nil
}
func (f *fakeResourceGrants) ListByUser(ctx context.Context, userID string) ([]*models.ResourceGrant, error) {
	var out []*models.ResourceGrant
	for _, g := range f.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}
func (f *fakeResourceGrants) Find(ctx context.Context, userID, resourceType, resourceID, permissionID string) (*models.ResourceGrant, error) {
	for _, g := range f.grants {
		if g.UserID == userID && g.ResourceType == resourceType && g.ResourceID == resourceID && g.PermissionID == permissionID {
			return g, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// --- test harness ---

type harness struct {
	engine          *Engine
	roles           *fakeRoles
	permissions     *fakePermissions
	rolePermissions *fakeRolePermissions
	userRoles       *fakeUserRoles
	userGrants      *fakeUserGrants
	resourceGrants  *fakeResourceGrants
}

func newHarness() *harness {
	h := &harness{
		roles:           &fakeRoles{byID: map[string]*models.Role{}},
		permissions:     &fakePermissions{byID: map[string]*models.Permission{}},
		rolePermissions: &fakeRolePermissions{byRole: map[string][]*models.RolePermission{}},
		userRoles:       &fakeUserRoles{byUser: map[string][]*models.UserRole{}},
		userGrants:      &fakeUserGrants{byUser: map[string][]*models.UserPermissionGrant{}},
		resourceGrants:  &fakeResourceGrants{},
	}
	h.engine = New(h.roles, h.permissions, h.rolePermissions, h.userRoles, h.userGrants, h.resourceGrants)
	return h
}

func (h *harness) permission(id, code string) *models.Permission {
	p := &models.Permission{ID: id, Code: code, CreatedAt: time.Now().UTC()}
	h.permissions.byID[id] = p
	return p
}

func (h *harness) role(id, name string) *models.Role {
	r := &models.Role{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	h.roles.byID[id] = r
	return r
}

func (h *harness) assignRole(userID, roleID string) {
	h.userRoles.byUser[userID] = append(h.userRoles.byUser[userID], &models.UserRole{
		UserID: userID, RoleID: roleID, GrantedAt: time.Now().UTC(),
	})
}

func (h *harness) grantRolePermission(roleID, permissionID string) {
	h.rolePermissions.byRole[roleID] = append(h.rolePermissions.byRole[roleID], &models.RolePermission{
		RoleID: roleID, PermissionID: permissionID, GrantedAt: time.Now().UTC(),
	})
}

func TestWildcardMatches(t *testing.T) {
	cases := []struct {
		stored, requested string
		want              bool
	}{
		{"admin:*", "admin", true},
		{"admin:*", "admin:users", true},
		{"admin:*", "admin:users:create", true},
		{"admin:*", "administrator", false},
		{"user:profile", "user:profile", true},
		{"user:profile", "user:profile:x", false},
		{"*", "anything", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Matches(tc.stored, tc.requested), "%s vs %s", tc.stored, tc.requested)
	}
}

func TestCheckDefaultUserAllow(t *testing.T) {
	h := newHarness()
	h.permission("p1", "user:profile")
	h.role("r1", "user")
	h.grantRolePermission("r1", "p1")
	h.assignRole("u1", "r1")

	result, err := h.engine.Check(context.Background(), "u1", CheckRequest{Permission: "user:profile"})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "role:user grants user:profile", result.Reason)
}

func TestCheckDefaultUserDeny(t *testing.T) {
	h := newHarness()
	h.permission("p1", "user:profile")
	h.role("r1", "user")
	h.grantRolePermission("r1", "p1")
	h.assignRole("u1", "r1")

	result, err := h.engine.Check(context.Background(), "u1", CheckRequest{Permission: "admin:users"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, "no matching permission", result.Reason)
}

func TestCheckAdminWildcardNested(t *testing.T) {
	h := newHarness()
	h.permission("p1", "admin:*")
	h.role("r1", "admin")
	h.grantRolePermission("r1", "p1")
	h.assignRole("u1", "r1")

	result, err := h.engine.Check(context.Background(), "u1", CheckRequest{Permission: "admin:users:create"})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "role:admin grants admin:*", result.Reason)
}

func TestCheckResourceGrantScope(t *testing.T) {
	h := newHarness()
	h.permission("p1", "patient:read")
	h.resourceGrants.grants = append(h.resourceGrants.grants, &models.ResourceGrant{
		ID: "g1", UserID: "u1", ResourceType: "patient", ResourceID: "patient-123",
		PermissionID: "p1", GrantedAt: time.Now().UTC(),
	})

	allow, err := h.engine.Check(context.Background(), "u1", CheckRequest{
		Permission: "patient:read", ResourceType: "patient", ResourceID: "patient-123",
	})
	require.NoError(t, err)
	assert.True(t, allow.Allowed)
	assert.Equal(t, "resource-grant for patient/patient-123", allow.Reason)

	deny, err := h.engine.Check(context.Background(), "u1", CheckRequest{
		Permission: "patient:read", ResourceType: "patient", ResourceID: "patient-456",
	})
	require.NoError(t, err)
	assert.False(t, deny.Allowed)
}

func TestCheckExpiredResourceGrant(t *testing.T) {
	h := newHarness()
	h.permission("p1", "patient:read")
	past := time.Now().UTC().Add(-time.Hour)
	h.resourceGrants.grants = append(h.resourceGrants.grants, &models.ResourceGrant{
		ID: "g1", UserID: "u1", ResourceType: "patient", ResourceID: "patient-123",
		PermissionID: "p1", GrantedAt: time.Now().UTC(), ExpiresAt: &past,
	})

	result, err := h.engine.Check(context.Background(), "u1", CheckRequest{
		Permission: "patient:read", ResourceType: "patient", ResourceID: "patient-123",
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestEvaluateBulk(t *testing.T) {
	h := newHarness()
	h.permission("p1", "user:profile")
	h.permission("p2", "user:credentials")
	h.role("r1", "user")
	h.grantRolePermission("r1", "p1")
	h.grantRolePermission("r1", "p2")
	h.assignRole("u1", "r1")

	results, err := h.engine.Evaluate(context.Background(), "u1", []CheckRequest{
		{Permission: "user:profile"},
		{Permission: "admin:users"},
		{Permission: "user:credentials"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Allowed)
	assert.False(t, results[1].Allowed)
	assert.True(t, results[2].Allowed)

	empty, err := h.engine.Evaluate(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDirectGrantBypassesRoles(t *testing.T) {
	h := newHarness()
	h.permission("p1", "billing:refund")
	h.userGrants.byUser["u1"] = append(h.userGrants.byUser["u1"], &models.UserPermissionGrant{
		UserID: "u1", PermissionID: "p1", ScopeType: models.ScopeAll, GrantedAt: time.Now().UTC(),
	})

	result, err := h.engine.Check(context.Background(), "u1", CheckRequest{Permission: "billing:refund"})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "direct grant: billing:refund", result.Reason)
}

func TestEffectivePermissionsDedup(t *testing.T) {
	h := newHarness()
	h.permission("p1", "user:profile")
	h.role("r1", "user")
	h.grantRolePermission("r1", "p1")
	h.assignRole("u1", "r1")
	h.userGrants.byUser["u1"] = append(h.userGrants.byUser["u1"], &models.UserPermissionGrant{
		UserID: "u1", PermissionID: "p1", ScopeType: models.ScopeAll, GrantedAt: time.Now().UTC(),
	})

	effective, err := h.engine.Effective(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, effective, 2)

	var sources []string
	for _, p := range effective {
		sources = append(sources, p.Source)
	}
	assert.Contains(t, sources, "role:user")
	assert.Contains(t, sources, SourceDirectGrant)
}
