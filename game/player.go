package game

import (
	"context"
	"errors"

	"github.com/wfunc/musicalchairs/logger"
)

// Player is one contestant. Run is its whole life: it waits for the music to
// stop, races for a chair, and either sits out the next song or leaves.
type Player struct {
	ID     int
	gameID string
	state  *GameState
	music  *MusicSignal
	active func() bool
}

func newPlayer(id int, gameID string, state *GameState, music *MusicSignal, active func() bool) *Player {
	return &Player{ID: id, gameID: gameID, state: state, music: music, active: active}
}

// Run returns nil when the player is eliminated or the game ends, and the
// context error if ctx is cancelled first.
func (p *Player) Run(ctx context.Context) error {
	var lastStop uint64
	for p.active() {
		stop, err := p.music.WaitForStop(ctx, lastStop)
		if err != nil {
			return p.exit(err)
		}
		lastStop = stop

		res, err := p.state.Claim(p.ID)
		if err != nil {
			return p.exit(err)
		}
		if res == NotSeated {
			logger.Log.Debugw("player eliminated", "game", p.gameID, "player", p.ID, "stop", stop)
			return nil
		}
		logger.Log.Debugw("player seated", "game", p.gameID, "player", p.ID, "stop", stop)
	}
	return nil
}

func (p *Player) exit(err error) error {
	if errors.Is(err, ErrGameOver) {
		return nil
	}
	return err
}
