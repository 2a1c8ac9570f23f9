package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// newRegistries returns every Registry implementation under test. The
// Postgres implementation needs a live connection and has no test in
// this package; this table only covers Memory, but
// is written against the interface so a future pgxtest/pgxmock-backed
// entry can be added without touching the assertions below.
func newRegistries(t *testing.T) map[string]Registry {
	t.Helper()
	return map[string]Registry{
		"memory": NewMemory(nil),
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec, err := reg.Add(ctx, domain.RegisterConfig{
				Name:      "weather",
				Transport: domain.TransportStdio,
				Tenant:    domain.TenantScope{IsGlobal: true},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, rec.ID)
			assert.Equal(t, domain.StatusDisconnected, rec.Status)

			got, ok, err := reg.Get(ctx, rec.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "weather", got.Name)

			byName, ok, err := reg.GetByName(ctx, "weather")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, rec.ID, byName.ID)
		})
	}
}

func TestRegistry_AddDuplicateGlobalNameFails(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := domain.RegisterConfig{Name: "dup", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}}
			_, err := reg.Add(ctx, cfg)
			require.NoError(t, err)

			_, err = reg.Add(ctx, cfg)
			assert.ErrorIs(t, err, apierrors.ErrDuplicateName)
		})
	}
}

func TestRegistry_AddSameNameDifferentTenantsSucceeds(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := reg.Add(ctx, domain.RegisterConfig{
				Name: "scoped", Transport: domain.TransportSSE,
				Tenant: domain.TenantScope{OrgID: "org-a"},
			})
			require.NoError(t, err)

			_, err = reg.Add(ctx, domain.RegisterConfig{
				Name: "scoped", Transport: domain.TransportSSE,
				Tenant: domain.TenantScope{OrgID: "org-b"},
			})
			assert.NoError(t, err)
		})
	}
}

func TestRegistry_ListFiltersByTenant(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := reg.Add(ctx, domain.RegisterConfig{Name: "global-one", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
			require.NoError(t, err)
			_, err = reg.Add(ctx, domain.RegisterConfig{Name: "org-only", Transport: domain.TransportStdio, Tenant: domain.TenantScope{OrgID: "org-a"}})
			require.NoError(t, err)

			visible, err := reg.List(ctx, nil, "")
			require.NoError(t, err)
			names := make([]string, 0, len(visible))
			for _, r := range visible {
				names = append(names, r.Name)
			}
			assert.Contains(t, names, "global-one")
			assert.NotContains(t, names, "org-only")

			visibleToOrgA, err := reg.List(ctx, nil, "org-a")
			require.NoError(t, err)
			names = names[:0]
			for _, r := range visibleToOrgA {
				names = append(names, r.Name)
			}
			assert.Contains(t, names, "global-one")
			assert.Contains(t, names, "org-only")
		})
	}
}

func TestRegistry_UpdateStatusAndToolCount(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec, err := reg.Add(ctx, domain.RegisterConfig{Name: "svc", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
			require.NoError(t, err)

			ok, err := reg.UpdateStatus(ctx, rec.ID, domain.StatusConnected, "")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = reg.UpdateToolCount(ctx, rec.ID, 7)
			require.NoError(t, err)
			assert.True(t, ok)

			got, _, err := reg.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusConnected, got.Status)
			assert.Equal(t, 7, got.ToolCount)
			assert.NotNil(t, got.ConnectedAt)
		})
	}
}

func TestRegistry_UpdatePatchAndRemove(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec, err := reg.Add(ctx, domain.RegisterConfig{Name: "patchable", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
			require.NoError(t, err)

			newDesc := "updated description"
			patched, err := reg.Update(ctx, rec.ID, domain.ServerPatch{Description: &newDesc})
			require.NoError(t, err)
			assert.Equal(t, newDesc, patched.Description)

			removed, err := reg.Remove(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, removed)

			_, ok, err := reg.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			removedAgain, err := reg.Remove(ctx, rec.ID)
			require.NoError(t, err)
			assert.False(t, removedAgain)
		})
	}
}

func TestRegistry_ListAllIgnoresTenant(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := reg.Add(ctx, domain.RegisterConfig{Name: "global-two", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
			require.NoError(t, err)
			_, err = reg.Add(ctx, domain.RegisterConfig{Name: "org-only-two", Transport: domain.TransportStdio, Tenant: domain.TenantScope{OrgID: "org-z"}})
			require.NoError(t, err)

			all, err := reg.ListAll(ctx, nil)
			require.NoError(t, err)
			names := make([]string, 0, len(all))
			for _, r := range all {
				names = append(names, r.Name)
			}
			assert.Contains(t, names, "global-two")
			assert.Contains(t, names, "org-only-two")
		})
	}
}

func TestRegistry_UpdateUnknownIDReturnsNotFound(t *testing.T) {
	for name, reg := range newRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			desc := "x"
			_, err := reg.Update(ctx, "does-not-exist", domain.ServerPatch{Description: &desc})
			assert.True(t, apierrors.IsNotFound(err))
		})
	}
}
