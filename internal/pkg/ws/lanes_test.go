package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneRunsJobsInOrder(t *testing.T) {
	lanes := NewLanes(100)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, lanes.Submit("g1", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	lanes.Wait()

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, lanes.Active())
}

func TestBlockedLaneDoesNotBlockOtherGames(t *testing.T) {
	lanes := NewLanes(10)
	release := make(chan struct{})
	done := make(chan struct{})

	require.NoError(t, lanes.Submit("slow", func() { <-release }))
	require.NoError(t, lanes.Submit("fast", func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fast lane was blocked by slow lane")
	}

	close(release)
	lanes.Wait()
}

func TestFullLaneRejects(t *testing.T) {
	lanes := NewLanes(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, lanes.Submit("g1", func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, lanes.Submit("g1", func() {}))
	assert.ErrorIs(t, lanes.Submit("g1", func() {}), ErrLaneFull)

	close(release)
	lanes.Wait()
}

func TestPanickingJobDoesNotKillLane(t *testing.T) {
	lanes := NewLanes(10)
	ran := false

	require.NoError(t, lanes.Submit("g1", func() { panic("boom") }))
	require.NoError(t, lanes.Submit("g1", func() { ran = true }))
	lanes.Wait()

	assert.True(t, ran)
}

func TestShutdownRefusesNewJobsAndWaits(t *testing.T) {
	lanes := NewLanes(10)
	release := make(chan struct{})
	var finished atomic.Bool

	require.NoError(t, lanes.Submit("g1", func() {
		<-release
		finished.Store(true)
	}))

	stopped := make(chan struct{})
	go func() {
		lanes.Shutdown()
		close(stopped)
	}()

	assert.Eventually(t, func() bool {
		return errors.Is(lanes.Submit("g2", func() {}), ErrLanesClosed)
	}, time.Second, 5*time.Millisecond)

	select {
	case <-stopped:
		t.Fatal("shutdown returned before the running job finished")
	default:
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.True(t, finished.Load())
	lanes.Shutdown()
}
