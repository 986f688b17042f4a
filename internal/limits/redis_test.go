package limits

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	w := NewRedisWindow(srv.Addr(), "test:rpm")
	defer w.Close()

	for i := 0; i < 3; i++ {
		ok, err := w.Allow(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := w.Allow(ctx, 3)
	require.NoError(t, err)
	require.False(t, ok)

	// the key expires once the window passes
	srv.FastForward(rpmWindow * 2)
	ok, err = w.Allow(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisWindowBackendDown(t *testing.T) {
	srv := miniredis.RunT(t)
	w := NewRedisWindow(srv.Addr(), "")
	srv.Close()

	_, err := w.Allow(context.Background(), 10)
	require.Error(t, err)
}
