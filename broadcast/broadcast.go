// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/musicalchairs/logger"
	"github.com/wfunc/musicalchairs/room"
	"github.com/wfunc/musicalchairs/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// RoomBroadcaster sends framed messages to the spectators of a room.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom sends to every spectator of roomID. Spectators whose
// connection fails are detached from the room and closed.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the sessions
	sessions := r.GetSessions()

	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Infow("dropping spectator", "room", roomID, "session", s.GetID(), "error", err)
			r.RemoveSpectator(s.GetID())
			b.sessionManager.Remove(s.GetID())
			s.Close()
		}
	}

	return nil
}

// BroadcastToAll sends to every connected spectator regardless of room.
func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	var errs []error
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
