package credential

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_RoundTrip(t *testing.T) {
	ctx := context.Background()
	k := New(keyring.NewArrayKeyring(nil))

	_, ok, err := k.GetItem(ctx, "session-token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, k.SetItem(ctx, "session-token", "abc"))
	got, ok, err := k.GetItem(ctx, "session-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	require.NoError(t, k.RemoveItem(ctx, "session-token"))
	_, ok, err = k.GetItem(ctx, "session-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyring_RemoveMissing(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))
	assert.NoError(t, k.RemoveItem(context.Background(), "nothing"))
}
