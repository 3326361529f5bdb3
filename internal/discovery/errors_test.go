package discovery

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(ErrTransient))
	assert.True(t, IsTransient(fmt.Errorf("fetch cities: %w", ErrTransient)))

	assert.False(t, IsTransient(ErrPermanent))
	assert.False(t, IsTransient(ErrInvalidResponse))
	assert.False(t, IsTransient(ErrContentBlocked))
	assert.False(t, IsTransient(errors.New("unclassified")))
	assert.False(t, IsTransient(nil))
}

func TestPermanentWrapping(t *testing.T) {
	t.Parallel()

	// Parse and safety failures are permanent by construction.
	assert.True(t, errors.Is(ErrInvalidResponse, ErrPermanent))
	assert.True(t, errors.Is(ErrContentBlocked, ErrPermanent))
	assert.False(t, errors.Is(ErrInvalidResponse, ErrTransient))
}
