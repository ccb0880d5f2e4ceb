package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rh-console/rh-console/internal/platform/cache"
)

func TestNewAcceptsAddrAndURL(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := cache.New(context.Background(), addr)
		require.NoError(t, err, addr)
		assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		_ = client.Close()
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := cache.New(context.Background(), addr)
	assert.Error(t, err)
}
