package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to completed skips processing", StatusPending, StatusCompleted, false},
		{"processing to processing is idempotent", StatusProcessing, StatusProcessing, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"completed cannot fail", StatusCompleted, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusProcessing, false},
		{"failed cannot complete", StatusFailed, StatusCompleted, false},
		{"processing cannot go back to pending", StatusProcessing, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("RUNNING").Valid())
	assert.False(t, Status("").Valid())
}
