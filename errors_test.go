package stepline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupError(t *testing.T) {
	base := errors.New("recipe not found")
	err := NewSetupError(base)

	assert.True(t, IsSetupError(err))
	assert.False(t, IsStepFailureError(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "setup error")

	wrapped := fmt.Errorf("while starting: %w", err)
	assert.True(t, IsSetupError(wrapped))
}

func TestStepFailureError(t *testing.T) {
	err := NewStepFailureError("2 steps failed")

	assert.True(t, IsStepFailureError(err))
	assert.False(t, IsSetupError(err))
	assert.Contains(t, err.Error(), "step failure")

	wrapped := fmt.Errorf("run finished: %w", err)
	assert.True(t, IsStepFailureError(wrapped))
}

func TestErrorPredicatesOnNil(t *testing.T) {
	assert.False(t, IsSetupError(nil))
	assert.False(t, IsStepFailureError(nil))
}
