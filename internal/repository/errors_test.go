package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The handlers branch on these sentinels with errors.Is, so each one
// must be a single package-level identity distinct from the others.
func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrEmailExists, ErrForbidden, ErrNotFound, ErrSlotTaken, ErrStaleStatus}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				assert.True(t, errors.Is(a, b))
				continue
			}
			assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
		}
	}
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("insert user: %w", ErrEmailExists)
	assert.True(t, errors.Is(wrapped, ErrEmailExists))
	assert.False(t, errors.Is(wrapped, ErrSlotTaken))
}
