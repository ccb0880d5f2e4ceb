package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rh-console/rh-console/internal/identity"
)

func TestHubDeliversInOrder(t *testing.T) {
	hub := identity.NewHub()
	var got []string
	hub.Subscribe(func(ev identity.Event) { got = append(got, "a:"+string(ev.Reason)) })
	hub.Subscribe(func(ev identity.Event) { got = append(got, "b:"+string(ev.Reason)) })

	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("s1", identity.Principal{ID: "ana"})))
	require.NoError(t, hub.Publish(context.Background(), identity.SignOut("s1")))

	assert.Equal(t, []string{"a:sign_in", "b:sign_in", "a:sign_out", "b:sign_out"}, got)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := identity.NewHub()
	calls := 0
	stop := hub.Subscribe(func(identity.Event) { calls++ })
	keep := hub.Subscribe(func(identity.Event) {})
	require.Equal(t, 2, hub.Len())

	stop()
	stop()
	assert.Equal(t, 1, hub.Len())
	require.NoError(t, hub.Publish(context.Background(), identity.Expired("s1")))
	assert.Zero(t, calls)

	keep()
	assert.Zero(t, hub.Len())
}

func TestHubSubscriberMayUnsubscribeDuringDelivery(t *testing.T) {
	hub := identity.NewHub()
	var stop func()
	calls := 0
	stop = hub.Subscribe(func(identity.Event) {
		calls++
		stop()
	})

	require.NoError(t, hub.Publish(context.Background(), identity.SignOut("s1")))
	require.NoError(t, hub.Publish(context.Background(), identity.SignOut("s1")))
	assert.Equal(t, 1, calls)
}

func TestEventConstructors(t *testing.T) {
	p := identity.Principal{ID: "ana"}
	in := identity.SignIn("s1", p)
	p.ID = "changed"
	require.NotNil(t, in.Principal)
	assert.Equal(t, "ana", in.Principal.ID)
	assert.Equal(t, identity.ReasonSignIn, in.Reason)

	assert.Nil(t, identity.SignOut("s1").Principal)
	assert.Equal(t, identity.ReasonExpired, identity.Expired("s1").Reason)
}
