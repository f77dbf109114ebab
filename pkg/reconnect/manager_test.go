package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	require.NoError(t, logger.Init("error", "test"))
	return NewManager(cfg, logger.Get())
}

func TestManager_BackoffGrowsAndCaps(t *testing.T) {
	m := newTestManager(t, Config{
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 40 * time.Millisecond,
		Multiplier: 2.0,
	})

	assert.Equal(t, 10*time.Millisecond, m.Backoff())

	m.RecordFailure()
	assert.Equal(t, 20*time.Millisecond, m.Backoff())

	m.RecordFailure()
	assert.Equal(t, 40*time.Millisecond, m.Backoff())

	// Capped
	m.RecordFailure()
	assert.Equal(t, 40*time.Millisecond, m.Backoff())
}

func TestManager_SuccessResetsBackoff(t *testing.T) {
	m := newTestManager(t, Config{MinBackoff: 10 * time.Millisecond, Multiplier: 2.0})

	m.RecordFailure()
	m.RecordFailure()
	m.RecordSuccess()

	assert.Equal(t, 10*time.Millisecond, m.Backoff())
	assert.Equal(t, 0, m.GetStats().ConsecutiveFailures)
	assert.Equal(t, 1, m.GetStats().TotalRecoveries)
}

func TestManager_CircuitOpensAndBlocksWait(t *testing.T) {
	m := newTestManager(t, Config{
		MinBackoff:        time.Millisecond,
		MaxFailures:       2,
		CircuitResetAfter: time.Hour,
	})

	m.RecordFailure()
	m.RecordFailure()
	require.True(t, m.GetStats().CircuitOpen)

	err := m.Wait(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestManager_CircuitAllowsProbeAfterReset(t *testing.T) {
	m := newTestManager(t, Config{
		MinBackoff:        time.Millisecond,
		MaxFailures:       1,
		CircuitResetAfter: 5 * time.Millisecond,
	})

	m.RecordFailure()
	require.True(t, m.GetStats().CircuitOpen)

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, m.Wait(context.Background()))
	assert.False(t, m.GetStats().CircuitOpen)
}

func TestManager_WaitHonoursContext(t *testing.T) {
	m := newTestManager(t, Config{MinBackoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := m.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
