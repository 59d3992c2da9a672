package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	seen, err := g.Seen(ctx, "QmAbc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.Mark(ctx, "QmAbc"))

	seen, err = g.Seen(ctx, "QmAbc")
	require.NoError(t, err)
	assert.True(t, seen)

	// Empty hashes are never marked.
	require.NoError(t, g.Mark(ctx, ""))
	seen, err = g.Seen(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen)
}
