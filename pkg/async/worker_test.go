package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/pkg/logger"
)

func TestWorkerRunsAndRetries(t *testing.T) {
	w := NewWorker(4, logger.NewNop())
	w.backoff = time.Millisecond
	w.Start(1)

	var calls int32
	id, err := w.AddTask("flaky", 2, time.Second, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	w.Stop()

	res, ok := w.GetResult(id)
	require.True(t, ok)
	assert.True(t, res.Completed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker(1, logger.NewNop())
	w.Start(1)
	id, err := w.AddTask("panic", 0, 0, func(ctx context.Context) error { panic("boom") })
	require.NoError(t, err)
	w.Stop()

	res, ok := w.GetResult(id)
	require.True(t, ok)
	assert.False(t, res.Completed)
	assert.Error(t, res.Error)
}

func TestAddTaskQueueFullAndStopped(t *testing.T) {
	w := NewWorker(1, logger.NewNop())
	noop := func(ctx context.Context) error { return nil }

	_, err := w.AddTask("a", 0, 0, noop)
	require.NoError(t, err)
	_, err = w.AddTask("b", 0, 0, noop)
	assert.ErrorIs(t, err, ErrQueueFull)

	w.Start(1)
	w.Stop()
	_, err = w.AddTask("c", 0, 0, noop)
	assert.ErrorIs(t, err, ErrStopped)
}
