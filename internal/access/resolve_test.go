package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rh-console/rh-console/internal/access"
)

var (
	denyAll  = access.Capability{}
	allowAll = access.Capability{Ver: true, Editar: true, Excluir: true}
)

func TestResolveNilGrantDeniesEverything(t *testing.T) {
	for _, r := range access.Resources() {
		assert.Equal(t, denyAll, access.Resolve(nil, r), r.String())
	}
}

func TestResolveExplicitEntry(t *testing.T) {
	grant, err := access.ParseGrant([]byte(`{"filiais": {"ver": true, "editar": false, "excluir": false}}`))
	require.NoError(t, err)

	assert.Equal(t, access.Capability{Ver: true}, access.Resolve(grant, access.ResourceFiliais))
	assert.Equal(t, denyAll, access.Resolve(grant, access.ResourceUsuarios))
}

func TestResolveAdminOverridesExplicitDeny(t *testing.T) {
	grant := access.NewGrant(true, map[string]access.Capability{
		string(access.ResourceUsuarios): {},
	})
	for _, r := range access.Resources() {
		assert.Equal(t, allowAll, access.Resolve(grant, r), r.String())
	}

	adminOnly, err := access.ParseGrant([]byte(`{"admin": true}`))
	require.NoError(t, err)
	assert.Equal(t, allowAll, access.Resolve(adminOnly, access.ResourceUsuarios))
}

func TestResolveAbsentKeyDeniesEverything(t *testing.T) {
	grant := access.NewGrant(false, map[string]access.Capability{
		string(access.ResourceMetas): {Ver: true, Editar: true},
	})
	for _, r := range access.Resources() {
		if r == access.ResourceMetas {
			continue
		}
		assert.Equal(t, denyAll, access.Resolve(grant, r), r.String())
	}
}

func TestResolveEmptyGrantDeniesEverything(t *testing.T) {
	for _, r := range access.Resources() {
		assert.Equal(t, denyAll, access.Resolve(access.EmptyGrant(), r), r.String())
	}
}

func TestResolveKeepsIndependentFlags(t *testing.T) {
	grant := access.NewGrant(false, map[string]access.Capability{
		string(access.ResourceEscala): {Editar: true},
	})
	got := access.Resolve(grant, access.ResourceEscala)
	assert.Equal(t, access.Capability{Editar: true}, got)
	assert.False(t, got.Allows(access.ActionView))
	assert.True(t, got.Allows(access.ActionEdit))
}

func TestResolveIsIdempotent(t *testing.T) {
	grant := access.NewGrant(false, map[string]access.Capability{
		string(access.ResourceCargos): {Ver: true, Excluir: true},
	})
	first := access.Resolve(grant, access.ResourceCargos)
	second := access.Resolve(grant, access.ResourceCargos)
	assert.Equal(t, first, second)
	assert.True(t, access.Can(grant, access.ResourceCargos, access.ActionDelete))
	assert.False(t, access.Can(grant, access.ResourceCargos, access.ActionEdit))
}

func TestParseResource(t *testing.T) {
	r, ok := access.ParseResource("vale-mercadoria")
	assert.True(t, ok)
	assert.Equal(t, access.ResourceValeMercadoria, r)

	_, ok = access.ParseResource("folha")
	assert.False(t, ok)
	assert.Len(t, access.Resources(), 20)
	assert.True(t, access.DefaultResource.Valid())
}
