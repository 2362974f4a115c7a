package bootstrap

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

type fakeRoles struct {
	mu      sync.Mutex
	byID    map[string]*models.Role
	byName  map[string]string
	creates int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{byID: map[string]*models.Role{}, byName: map[string]string{}}
}

func (f *fakeRoles) Create(_ context.Context, r *models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[r.ID] = r
	f.byName[r.Name] = r.ID
	f.creates++
	return nil
}
func (f *fakeRoles) GetByID(_ context.Context, id string) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r, nil
}
func (f *fakeRoles) Update(_ context.Context, r *models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[r.ID] = r
	return nil
}
func (f *fakeRoles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}
func (f *fakeRoles) List(_ context.Context, _ interface{}) ([]*models.Role, error) { return nil, nil }
func (f *fakeRoles) Count(_ context.Context, _ interface{}) (int64, error)         { return 0, nil }
func (f *fakeRoles) GetByName(_ context.Context, name string) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byName[name]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return f.byID[id], nil
}

type fakePermissions struct {
	mu      sync.Mutex
	byID    map[string]*models.Permission
	byCode  map[string]string
	creates int
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{byID: map[string]*models.Permission{}, byCode: map[string]string{}}
}

func (f *fakePermissions) Create(_ context.Context, p *models.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	f.byCode[p.Code] = p.ID
	f.creates++
	return nil
}
func (f *fakePermissions) GetByID(_ context.Context, id string) (*models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}
func (f *fakePermissions) Update(_ context.Context, p *models.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	return nil
}
func (f *fakePermissions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}
func (f *fakePermissions) List(_ context.Context, _ interface{}) ([]*models.Permission, error) {
	return nil, nil
}
func (f *fakePermissions) Count(_ context.Context, _ interface{}) (int64, error) { return 0, nil }
func (f *fakePermissions) GetByCode(_ context.Context, code string) (*models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byCode[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return f.byID[id], nil
}

type fakeRolePermissions struct {
	mu      sync.Mutex
	edges   []*models.RolePermission
	creates int
}

func newFakeRolePermissions() *fakeRolePermissions { return &fakeRolePermissions{} }

func (f *fakeRolePermissions) Grant(_ context.Context, edge *models.RolePermission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, edge)
	f.creates++
	return nil
}
func (f *fakeRolePermissions) Revoke(_ context.Context, roleID, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.edges[:0]
	for _, e := range f.edges {
		if e.RoleID == roleID && e.PermissionID == permissionID {
			continue
		}
		out = append(out, e)
	}
	f.edges = out
	return nil
}
func (f *fakeRolePermissions) ListByRole(_ context.Context, roleID string) ([]*models.RolePermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RolePermission
	for _, e := range f.edges {
		if e.RoleID == roleID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeRolePermissions) ListByRoles(_ context.Context, roleIDs []string) ([]*models.RolePermission, error) {
	var out []*models.RolePermission
	for _, id := range roleIDs {
		edges, _ := f.ListByRole(nil, id)
		out = append(out, edges...)
	}
	return out, nil
}

func newTestDeps() (Dependencies, *fakeRoles, *fakePermissions, *fakeRolePermissions) {
	roles := newFakeRoles()
	perms := newFakePermissions()
	edges := newFakeRolePermissions()
	return Dependencies{Roles: roles, Permissions: perms, RolePermissions: edges}, roles, perms, edges
}

func TestBootstrapSeedsSystemRolesAndPermissions(t *testing.T) {
	deps, roles, perms, edges := newTestDeps()
	ctx := context.Background()

	require.NoError(t, Bootstrap(ctx, deps))

	admin, err := roles.GetByName(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.True(t, admin.IsSystem)

	user, err := roles.GetByName(ctx, models.RoleUser)
	require.NoError(t, err)
	require.True(t, user.IsSystem)

	adminWildcard, err := perms.GetByCode(ctx, models.PermissionAdminWildcard)
	require.NoError(t, err)
	_, err = perms.GetByCode(ctx, models.PermissionUserProfile)
	require.NoError(t, err)
	_, err = perms.GetByCode(ctx, models.PermissionUserCredentials)
	require.NoError(t, err)

	adminEdges, err := edges.ListByRole(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, adminEdges, 1)
	require.Equal(t, adminWildcard.ID, adminEdges[0].PermissionID)

	userEdges, err := edges.ListByRole(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, userEdges, 2)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	deps, roles, perms, edges := newTestDeps()
	ctx := context.Background()

	require.NoError(t, Bootstrap(ctx, deps))
	require.NoError(t, Bootstrap(ctx, deps))

	require.Equal(t, 2, roles.creates)
	require.Equal(t, 3, perms.creates)
	require.Equal(t, 3, edges.creates)
}
