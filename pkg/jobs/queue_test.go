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

func TestQueueProcessesJobs(t *testing.T) {
	processed := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		processed <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "noop"}))
	select {
	case job := <-processed:
		assert.Equal(t, "j-1", job.ID)
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "j-1"}))
}

func TestQueueReportsBacklogDepth(t *testing.T) {
	var mu sync.Mutex
	var depths []int
	processed := make(chan Job, 1)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		processed <- job
		return nil
	}, QueueConfig{
		Workers:    1,
		BufferSize: 4,
		OnDepth: func(depth int) {
			mu.Lock()
			depths = append(depths, depth)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "noop"}))
	select {
	case <-processed:
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, depths, 2)
	assert.Equal(t, 0, depths[len(depths)-1])
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	attempts := make(chan int, 4)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		attempts <- job.Attempt
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "noop"}))

	deadline := time.After(2 * time.Second)
	var seen []int
	for len(seen) < 2 {
		select {
		case attempt := <-attempts:
			seen = append(seen, attempt)
		case <-deadline:
			t.Fatalf("expected a retry, saw attempts %v", seen)
		}
	}
	assert.Equal(t, []int{0, 1}, seen)
}
