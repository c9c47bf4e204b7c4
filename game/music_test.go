package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMusicSignal_StartsPlaying(t *testing.T) {
	m := NewMusicSignal(&sync.Mutex{})
	assert.False(t, m.Stopped())
	assert.Zero(t, m.Stops())
	assert.NoError(t, m.WaitUntil(context.Background(), false))
}

func TestMusicSignal_BroadcastWakesEveryWaiter(t *testing.T) {
	m := NewMusicSignal(&sync.Mutex{})

	const waiters = 10
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.WaitUntil(context.Background(), true)
		}()
	}

	m.SetStopped(true)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, m.Stops())
}

func TestMusicSignal_WaitForStopNeedsANewStop(t *testing.T) {
	m := NewMusicSignal(&sync.Mutex{})
	m.SetStopped(true)

	stop, err := m.WaitForStop(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stop)

	done := make(chan uint64, 1)
	go func() {
		n, _ := m.WaitForStop(context.Background(), stop)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("a second claim in the same stop phase must not be allowed")
	case <-time.After(10 * time.Millisecond):
	}

	// Resume and stop again before the waiter gets to run.
	m.SetStopped(false)
	m.SetStopped(true)
	select {
	case n := <-done:
		assert.EqualValues(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("waiter missed the next stop")
	}
}

func TestMusicSignal_RepeatedStopIsOnePhase(t *testing.T) {
	m := NewMusicSignal(&sync.Mutex{})
	m.SetStopped(true)
	m.SetStopped(true)
	assert.EqualValues(t, 1, m.Stops())
}

func TestMusicSignal_CloseAndCancel(t *testing.T) {
	m := NewMusicSignal(&sync.Mutex{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.WaitUntil(ctx, true) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	go func() {
		_, err := m.WaitForStop(context.Background(), 0)
		done <- err
	}()
	m.Close()
	assert.ErrorIs(t, <-done, ErrGameOver)
	assert.ErrorIs(t, m.WaitUntil(context.Background(), false), ErrGameOver)
}
