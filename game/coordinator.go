package game

import (
	"context"
	"time"

	"github.com/wfunc/musicalchairs/logger"
	"github.com/wfunc/musicalchairs/state"
	"github.com/wfunc/musicalchairs/timer"
)

// Phase ids of the round state machine.
const (
	PhaseIdle         = "idle"
	PhaseRoundStart   = "round_start"
	PhaseMusicPlaying = "music_playing"
	PhaseMusicStopped = "music_stopped"
	PhaseSettlingRace = "settling_race"
	PhaseRoundEnd     = "round_end"
	PhaseGameOver     = "game_over"
)

// Result is the outcome of a finished game.
type Result struct {
	Winner     int
	Eliminated []int
	Rounds     int
}

// Coordinator runs the rounds. It is the only writer of the music signal and
// of everything in GameState except the players' claims.
type Coordinator struct {
	gameID    string
	state     *GameState
	pool      *ChairPool
	music     *MusicSignal
	durations timer.Provider
	notifier  Notifier
	active    func() bool

	machine *state.BaseStateMachine
	phases  map[string]*state.Phase
}

func newCoordinator(gameID string, gs *GameState, pool *ChairPool, music *MusicSignal, durations timer.Provider, notifier Notifier, active func() bool) *Coordinator {
	c := &Coordinator{
		gameID:    gameID,
		state:     gs,
		pool:      pool,
		music:     music,
		durations: durations,
		notifier:  notifier,
		active:    active,
		phases:    make(map[string]*state.Phase),
	}
	for _, id := range []string{PhaseIdle, PhaseRoundStart, PhaseMusicPlaying, PhaseMusicStopped, PhaseSettlingRace, PhaseRoundEnd, PhaseGameOver} {
		p := state.NewPhase(id)
		p.Enter = func() {
			logger.Log.Debugw("phase", "game", gameID, "phase", id)
		}
		c.phases[id] = p
	}

	c.machine = state.NewBaseStateMachine(c.phases[PhaseIdle])
	morePlayers := func() bool { return gs.Players() > 1 }
	lastPlayer := func() bool { return gs.Players() == 1 }
	c.allow(PhaseIdle, PhaseRoundStart, nil)
	c.allow(PhaseRoundStart, PhaseMusicPlaying, nil)
	c.allow(PhaseMusicPlaying, PhaseMusicStopped, nil)
	c.allow(PhaseMusicStopped, PhaseSettlingRace, nil)
	c.allow(PhaseSettlingRace, PhaseRoundEnd, morePlayers)
	c.allow(PhaseSettlingRace, PhaseGameOver, lastPlayer)
	c.allow(PhaseRoundEnd, PhaseRoundStart, nil)
	return c
}

func (c *Coordinator) allow(from, to string, cond func() bool) {
	c.machine.AddTransition(c.phases[from], c.phases[to], cond)
}

func (c *Coordinator) enter(id string) error {
	if err := c.machine.ChangeState(c.phases[id]); err != nil {
		return &InvalidStateError{
			Op:     "enter " + id,
			Reason: "from " + c.machine.GetCurrentState().GetID(),
			Err:    err,
		}
	}
	return nil
}

// Phase returns the id of the current phase.
func (c *Coordinator) Phase() string {
	return c.machine.GetCurrentState().GetID()
}

// History returns every phase entered so far.
func (c *Coordinator) History() []string {
	return c.machine.History()
}

func (c *Coordinator) emit(e Event) {
	e.GameID = c.gameID
	e.At = time.Now()
	c.notifier.Notify(e)
}

// Run plays rounds until one player is left, a fatal error occurs or ctx ends.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	for c.active() {
		done, res, err := c.playRound(ctx)
		if err != nil {
			logger.Log.Errorw("game aborted", "game", c.gameID, "phase", c.Phase(), "error", err)
			return Result{}, err
		}
		if done {
			return res, nil
		}
	}
	return Result{}, ErrGameOver
}

func (c *Coordinator) playRound(ctx context.Context) (bool, Result, error) {
	if err := c.enter(PhaseRoundStart); err != nil {
		return false, Result{}, err
	}
	snap, err := c.state.BeginRound()
	if err != nil {
		return false, Result{}, err
	}
	logger.Log.Infow("round started", "game", c.gameID, "round", snap.Round, "players", snap.Players, "chairs", len(snap.Chairs))
	c.emit(Event{Kind: EventRoundStarted, Round: snap.Round, Players: snap.Players, Chairs: len(snap.Chairs)})

	if err := c.enter(PhaseMusicPlaying); err != nil {
		return false, Result{}, err
	}
	c.music.SetStopped(false)
	if err := timer.Sleep(ctx, c.durations()); err != nil {
		return false, Result{}, err
	}

	if err := c.enter(PhaseMusicStopped); err != nil {
		return false, Result{}, err
	}
	c.music.SetStopped(true)
	c.emit(Event{Kind: EventMusicStopped, Round: snap.Round, Players: snap.Players, Chairs: len(snap.Chairs)})

	if err := c.enter(PhaseSettlingRace); err != nil {
		return false, Result{}, err
	}
	start := time.Now()
	// Every chair taken; the loser is parked on the gate or still on its way.
	if err := c.pool.WaitDrained(ctx); err != nil {
		return false, Result{}, err
	}
	if err := c.state.DropPlayer(); err != nil {
		return false, Result{}, err
	}
	// One extra unit lets the loser through to find no chair and eliminate itself.
	if err := c.pool.Release(1); err != nil {
		return false, Result{}, err
	}
	if err := c.pool.WaitDrained(ctx); err != nil {
		return false, Result{}, err
	}
	settle := time.Since(start)

	snap, err = c.state.CheckSettled()
	if err != nil {
		return false, Result{}, err
	}
	loser := snap.LastEliminated()
	logger.Log.Infow("player eliminated", "game", c.gameID, "round", snap.Round, "player", loser, "chairs", snap.Chairs)
	c.emit(Event{Kind: EventPlayerEliminated, Round: snap.Round, Players: snap.Players, Chairs: len(snap.Chairs), Player: loser})
	c.emit(Event{
		Kind:       EventRoundState,
		Round:      snap.Round,
		Players:    snap.Players,
		Chairs:     len(snap.Chairs),
		Player:     loser,
		Occupants:  snap.Chairs,
		Eliminated: snap.Eliminated,
		Settle:     settle,
	})

	if snap.Players == 1 {
		if err := c.enter(PhaseGameOver); err != nil {
			return false, Result{}, err
		}
		final, err := c.state.Finish()
		if err != nil {
			return false, Result{}, err
		}
		logger.Log.Infow("game won", "game", c.gameID, "winner", final.Winner, "rounds", final.Round)
		c.emit(Event{Kind: EventGameOver, Round: final.Round, Players: final.Players, Winner: final.Winner, Eliminated: final.Eliminated})
		return true, Result{Winner: final.Winner, Eliminated: final.Eliminated, Rounds: final.Round}, nil
	}

	if err := c.enter(PhaseRoundEnd); err != nil {
		return false, Result{}, err
	}
	c.music.SetStopped(false)
	return false, Result{}, nil
}
