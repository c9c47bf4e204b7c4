package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wfunc/musicalchairs/game"
)

func TestRenderer_Plain(t *testing.T) {
	var out bytes.Buffer
	r := &renderer{w: &out}

	r.Notify(game.Event{Kind: game.EventRoundStarted, Round: 1, Players: 3, Chairs: 2})
	r.Notify(game.Event{Kind: game.EventRoundState, Occupants: []int{3, 1}})
	r.Notify(game.Event{Kind: "unknown"})

	want := "Round 1: 3 players, 2 chairs. The music is playing.\n[Chair 1]: P3\n[Chair 2]: P1\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestRenderer_ColorKeepsLines(t *testing.T) {
	var out bytes.Buffer
	r := &renderer{w: &out, color: true}

	r.Notify(game.Event{Kind: game.EventRoundState, Occupants: []int{2, 4, 1}})
	r.Notify(game.Event{Kind: game.EventGameOver, Winner: 2, Round: 3})

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[3], "Player P2 wins after 3 rounds.") {
		t.Errorf("winner line lost its text: %q", lines[3])
	}
}
