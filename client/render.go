package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wfunc/musicalchairs/broadcast"
	"github.com/wfunc/musicalchairs/game"
)

var (
	roundStyle = lipgloss.NewStyle().Bold(true)
	stopStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	chairStyle = lipgloss.NewStyle().Faint(true)
	outStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	winStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

func styleFor(kind game.EventKind) lipgloss.Style {
	switch kind {
	case game.EventRoundStarted:
		return roundStyle
	case game.EventMusicStopped:
		return stopStyle
	case game.EventPlayerEliminated:
		return outStyle
	case game.EventGameOver:
		return winStyle
	default:
		return chairStyle
	}
}

// renderer prints events with the same wording as the server console,
// styled per event kind when color is on.
type renderer struct {
	w     io.Writer
	color bool
}

func (r *renderer) Notify(e game.Event) {
	var b strings.Builder
	broadcast.NewConsole(&b).Notify(e)
	if b.Len() == 0 {
		return
	}
	if !r.color {
		io.WriteString(r.w, b.String())
		return
	}

	style := styleFor(e.Kind)
	for _, line := range strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n") {
		io.WriteString(r.w, style.Render(line)+"\n")
	}
}
