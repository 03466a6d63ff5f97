package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(CodeInvalidInput, "scope is required")
		assert.True(t, HasCode(err, CodeInvalidInput))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("code behind fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("publish: %w", New(CodeInvalidInput, "bad event"))
		assert.True(t, HasCode(err, CodeInvalidInput))
	})

	t.Run("nested coded errors", func(t *testing.T) {
		inner := New(CodeNotFound, "panel missing")
		err := Wrap(inner, CodeInternal, "render failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "presence store unavailable")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, "presence store unavailable", MessageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf_Uncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(errors.New("boom")))
}
