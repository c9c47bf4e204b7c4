package network

import (
	"encoding/json"

	"github.com/wfunc/musicalchairs/game"
)

const (
	MsgTypeHeartbeat        = 1
	MsgTypeRoomState        = 301
	MsgTypeRoundStarted     = 302
	MsgTypeMusicStopped     = 303
	MsgTypePlayerEliminated = 304
	MsgTypeRoundSnapshot    = 305
	MsgTypeGameOver         = 306
)

var eventMsgTypes = map[game.EventKind]uint16{
	game.EventRoundStarted:     MsgTypeRoundStarted,
	game.EventMusicStopped:     MsgTypeMusicStopped,
	game.EventPlayerEliminated: MsgTypePlayerEliminated,
	game.EventRoundState:       MsgTypeRoundSnapshot,
	game.EventGameOver:         MsgTypeGameOver,
}

// MsgTypeFor returns the message id used to send events of the given kind.
func MsgTypeFor(kind game.EventKind) (uint16, bool) {
	id, ok := eventMsgTypes[kind]
	return id, ok
}

// EncodeEvent returns the message id and JSON payload for e.
func EncodeEvent(e game.Event) (uint16, []byte, error) {
	msgID, ok := MsgTypeFor(e.Kind)
	if !ok {
		return 0, nil, ErrUnknownEvent
	}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, nil, err
	}
	return msgID, data, nil
}
