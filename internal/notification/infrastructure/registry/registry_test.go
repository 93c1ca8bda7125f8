package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBindResolve(t *testing.T) {
	r := New(nil, time.Minute)
	ctx := context.Background()

	_, ok, err := r.Resolve(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Bind(ctx, "acc-1", "conn-a"))

	connID, ok, err := r.Resolve(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "conn-a", connID)
}

func TestLocalBindOverwritesPrevious(t *testing.T) {
	r := New(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Bind(ctx, "acc-1", "conn-a"))
	require.NoError(t, r.Bind(ctx, "acc-1", "conn-b"))

	connID, ok, err := r.Resolve(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "conn-b", connID)
}

func TestLocalUnbindIgnoresStaleConn(t *testing.T) {
	r := New(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Bind(ctx, "acc-1", "conn-a"))
	require.NoError(t, r.Bind(ctx, "acc-1", "conn-b"))

	// 旧连接断开不应摘掉新连接的映射
	require.NoError(t, r.Unbind(ctx, "acc-1", "conn-a"))
	connID, ok, err := r.Resolve(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "conn-b", connID)

	require.NoError(t, r.Unbind(ctx, "acc-1", "conn-b"))
	_, ok, err = r.Resolve(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindRejectsEmptyArgs(t *testing.T) {
	r := New(nil, time.Minute)
	assert.Error(t, r.Bind(context.Background(), "", "conn-a"))
	assert.Error(t, r.Bind(context.Background(), "acc-1", ""))
}
