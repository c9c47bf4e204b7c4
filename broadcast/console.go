package broadcast

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wfunc/musicalchairs/game"
)

// Console writes a human readable commentary of the game to w.
type Console struct {
	mu sync.Mutex
	w  io.Writer
	// Prefix adds the short game id to every line, for several tables at once.
	Prefix bool
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(e game.Event) {
	var b strings.Builder
	prefix := ""
	if c.Prefix && e.GameID != "" {
		id := e.GameID
		if len(id) > 8 {
			id = id[:8]
		}
		prefix = "[" + id + "] "
	}

	switch e.Kind {
	case game.EventRoundStarted:
		fmt.Fprintf(&b, "%sRound %d: %d players, %d chairs. The music is playing.\n", prefix, e.Round, e.Players, e.Chairs)
	case game.EventMusicStopped:
		fmt.Fprintf(&b, "%s> The music stopped.\n", prefix)
	case game.EventPlayerEliminated:
		fmt.Fprintf(&b, "%sPlayer P%d is out.\n", prefix, e.Player)
	case game.EventRoundState:
		for i, occupant := range e.Occupants {
			fmt.Fprintf(&b, "%s[Chair %d]: P%d\n", prefix, i+1, occupant)
		}
	case game.EventGameOver:
		fmt.Fprintf(&b, "%sPlayer P%d wins after %d rounds.\n", prefix, e.Winner, e.Round)
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, b.String())
}
