package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	var processed []string

	q := NewQueue("test", func(_ context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		processed = append(processed, task.ID)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "t1", Type: "noop"}))
	require.NoError(t, q.Enqueue(Task{ID: "t2", Type: "noop"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesUpToLimit(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	q := NewQueue("test", func(_ context.Context, _ Task) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("always fails")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "t1", Type: "noop"}))

	// Initial attempt plus two retries, then the task is dropped.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 3
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Task) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Task{ID: "t1"}))
}
