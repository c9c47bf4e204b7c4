package game

import (
	"context"
	"sync"
)

// MusicSignal is the playing/stopped flag every player watches.
// It shares its lock with the ChairPool so a player never sees "stopped"
// and then claims against a stale chair count.
type MusicSignal struct {
	mu      *sync.Mutex
	changed *sync.Cond
	stopped bool
	stops   uint64 // playing -> stopped transitions so far
	closed  bool
}

// NewMusicSignal starts in the playing state.
func NewMusicSignal(mu *sync.Mutex) *MusicSignal {
	m := &MusicSignal{mu: mu}
	m.changed = sync.NewCond(mu)
	return m
}

// SetStopped sets the state and wakes every waiter.
func (m *MusicSignal) SetStopped(stopped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stopped && !m.stopped {
		m.stops++
	}
	m.stopped = stopped
	m.changed.Broadcast()
}

func (m *MusicSignal) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Stops returns how many times the music has stopped.
func (m *MusicSignal) Stops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// WaitUntil blocks until the state equals stopped.
func (m *MusicSignal) WaitUntil(ctx context.Context, stopped bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stop := wakeOnCancel(ctx, m.mu, m.changed)
	defer stop()

	for m.stopped != stopped && !m.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.changed.Wait()
	}
	if m.closed {
		return ErrGameOver
	}
	return ctx.Err()
}

// WaitForStop blocks until the music is stopped in a stop phase newer than
// after, and returns that phase's number. Passing the number returned by the
// previous call means the music has resumed in between, even if the caller
// was never scheduled while it was playing.
func (m *MusicSignal) WaitForStop(ctx context.Context, after uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stop := wakeOnCancel(ctx, m.mu, m.changed)
	defer stop()

	for !(m.stopped && m.stops > after) && !m.closed {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.changed.Wait()
	}
	if m.closed {
		return 0, ErrGameOver
	}
	return m.stops, ctx.Err()
}

// Close wakes every waiter with ErrGameOver.
func (m *MusicSignal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.changed.Broadcast()
}
