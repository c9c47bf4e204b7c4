package game

import "time"

type EventKind string

const (
	EventRoundStarted     EventKind = "round_started"
	EventMusicStopped     EventKind = "music_stopped"
	EventPlayerEliminated EventKind = "player_eliminated"
	EventRoundState       EventKind = "round_state"
	EventGameOver         EventKind = "game_over"
)

// Event is a state change published by the coordinator.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Kind       EventKind     `json:"kind"`
	GameID     string        `json:"game_id,omitempty"`
	Round      int           `json:"round"`
	Players    int           `json:"players"`
	Chairs     int           `json:"chairs"`
	Player     int           `json:"player,omitempty"`
	Occupants  []int         `json:"occupants,omitempty"`
	Eliminated []int         `json:"eliminated,omitempty"`
	Winner     int           `json:"winner,omitempty"`
	Settle     time.Duration `json:"settle_ns,omitempty"`
	At         time.Time     `json:"at"`
}

// Notifier receives events synchronously from the coordinator goroutine.
// Implementations must not block for long: the next phase waits for them.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type discard struct{}

func (discard) Notify(Event) {}
