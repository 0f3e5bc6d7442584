package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("test", func(_ context.Context, j Job) error {
		mu.Lock()
		seen = append(seen, j.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 10})
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "t"}))
	}
	require.NoError(t, q.Stop(context.Background()))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, uint64(3), q.Stats().Processed)
	assert.ErrorIs(t, q.Enqueue(Job{Type: "t"}), ErrQueueClosed)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{Type: "t"}), ErrQueueClosed)
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("full", func(context.Context, Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	var full bool
	for i := 0; i < 5 && !full; i++ {
		full = errors.Is(q.Enqueue(Job{Type: "t"}), ErrQueueFull)
	}
	assert.True(t, full)
	close(release)
	require.NoError(t, q.Stop(context.Background()))
	assert.NotZero(t, q.Stats().Dropped)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, j Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "t"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1), q.Stats().Processed)
}

func TestMuxRoutesByType(t *testing.T) {
	mux := NewMux()
	var got string
	mux.Handle(func(_ context.Context, j Job) error { got = j.Type; return nil }, "a", "b")

	require.NoError(t, mux.Dispatch(context.Background(), Job{Type: "b"}))
	assert.Equal(t, "b", got)
	assert.Error(t, mux.Dispatch(context.Background(), Job{Type: "c"}))
}

func TestQueueAssignsIDs(t *testing.T) {
	ids := make(chan string, 1)
	q := NewQueue("ids", func(_ context.Context, j Job) error { ids <- j.ID; return nil }, QueueConfig{})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "t"}))
	require.NoError(t, q.Stop(context.Background()))
	assert.NotEmpty(t, <-ids)
}
