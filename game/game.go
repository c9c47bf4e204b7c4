// Package game plays musical chairs with one goroutine per player and a
// coordinator goroutine driving the rounds.
//
// The chair pool and the music signal share a single mutex. A player claims a
// chair only after observing the music stop, and claiming a unit, writing the
// occupant and (for the one player left without a chair) recording its own
// elimination happen in one critical section. The coordinator detects the end
// of each race by waiting for the pool to drain, lets the loser through with
// one extra unit, and waits for the pool to drain again before it reads the
// elimination list.
package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/musicalchairs/timer"
)

// Options configure a Game. Only Players is required.
type Options struct {
	ID            string
	Players       int
	RoundDuration timer.Provider
	Notifier      Notifier
}

// Game is one table of musical chairs. Several can run in one process.
type Game struct {
	ID string

	mu          sync.Mutex
	pool        *ChairPool
	music       *MusicSignal
	state       *GameState
	coordinator *Coordinator
	players     []*Player

	active  atomic.Bool
	started atomic.Bool
}

// New builds a game. Nothing runs until Run is called.
func New(opts Options) (*Game, error) {
	if opts.Players < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players, got %d", ErrInvalidConfig, opts.Players)
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.RoundDuration == nil {
		opts.RoundDuration = timer.Fixed(0)
	}
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}

	g := &Game{ID: opts.ID}
	g.pool = NewChairPool(&g.mu, 0)
	g.music = NewMusicSignal(&g.mu)
	gs, err := NewGameState(&g.mu, g.pool, opts.Players)
	if err != nil {
		return nil, err
	}
	g.state = gs
	g.active.Store(true)

	g.coordinator = newCoordinator(g.ID, gs, g.pool, g.music, opts.RoundDuration, opts.Notifier, g.Active)
	for id := 1; id <= opts.Players; id++ {
		g.players = append(g.players, newPlayer(id, g.ID, gs, g.music, g.Active))
	}
	return g, nil
}

// Run starts every player and the coordinator and blocks until the game is
// won, fails or ctx is cancelled. A game can only be run once.
func (g *Game) Run(ctx context.Context) (Result, error) {
	if !g.started.CompareAndSwap(false, true) {
		return Result{}, invalidState("run", "game %s already started", g.ID)
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, p := range g.players {
		eg.Go(func() error { return p.Run(gctx) })
	}

	var result Result
	eg.Go(func() error {
		defer g.stop()
		res, err := g.coordinator.Run(gctx)
		result = res
		return err
	})

	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// stop clears the active flag and wakes everything still waiting.
func (g *Game) stop() {
	g.active.Store(false)
	g.pool.Close()
	g.music.Close()
}

// Active reports whether the game is still being played.
func (g *Game) Active() bool {
	return g.active.Load()
}

func (g *Game) Players() int {
	return len(g.players)
}

func (g *Game) Snapshot() Snapshot {
	return g.state.Snapshot()
}

// Phase returns the coordinator's current phase.
func (g *Game) Phase() string {
	return g.coordinator.Phase()
}
