package broadcast

import (
	"runtime/debug"
	"sync"

	"github.com/wfunc/musicalchairs/game"
	"github.com/wfunc/musicalchairs/logger"
)

// Hub fans game events out to a set of sinks, in registration order.
// A panicking sink is logged and skipped; the others still get the event.
type Hub struct {
	mu    sync.RWMutex
	sinks []game.Notifier
}

func NewHub(sinks ...game.Notifier) *Hub {
	h := &Hub{}
	for _, s := range sinks {
		h.Add(s)
	}
	return h
}

// Add registers a sink. Nil sinks are ignored.
func (h *Hub) Add(sink game.Notifier) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Notify implements game.Notifier.
func (h *Hub) Notify(e game.Event) {
	h.mu.RLock()
	sinks := make([]game.Notifier, len(h.sinks))
	copy(sinks, h.sinks)
	h.mu.RUnlock()

	for _, s := range sinks {
		h.safeNotify(s, e)
	}
}

func (h *Hub) safeNotify(s game.Notifier, e game.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("event sink panicked", "kind", e.Kind, "game", e.GameID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	s.Notify(e)
}
