package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeNotFound, "no such vulnerability")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := fmt.Errorf("fetch latest: %w", Wrap(CodeUnavailable, "ledger unreachable", cause))
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("uncoded error", func(t *testing.T) {
		err := errors.New("plain")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("revert: platform already registered")
	err := Wrap(CodeConflict, "duplicate submission", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "revert: platform already registered")
	assert.Equal(t, "duplicate submission", MessageOf(err))
}
