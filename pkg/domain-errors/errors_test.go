package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "realm not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeAggregateDeleted, "user is deleted")
		err := fmt.Errorf("change password: %w", Wrap(inner, CodeInternal, "command failed"))
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeAggregateDeleted))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestValidation(t *testing.T) {
	t.Run("nil without fields", func(t *testing.T) {
		assert.NoError(t, Validation())
	})

	t.Run("composes field errors by concatenation", func(t *testing.T) {
		a := []FieldError{{Field: "UniqueSlug", Code: "NotEmpty", Message: "must not be empty"}}
		b := []FieldError{{Field: "Url", Code: "Url", Message: "must be an absolute URL"}}
		err := Validation(append(a, b...)...)
		require.Error(t, err)
		assert.True(t, HasCode(err, CodeValidation))
		assert.Len(t, Fields(err), 2)
		assert.Contains(t, err.Error(), "UniqueSlug: must not be empty")
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}
