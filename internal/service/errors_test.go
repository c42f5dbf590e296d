package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fail(ErrNotFound, "Room %s not found", "abc")

	assert.Equal(t, "Room abc not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))

	wrapped := fmt.Errorf("join: %w", err)
	var svcErr *Error
	assert.True(t, errors.As(wrapped, &svcErr))
	assert.Equal(t, "not_found", svcErr.Code())
}
