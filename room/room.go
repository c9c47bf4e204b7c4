// room/room.go
package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/musicalchairs/game"
	"github.com/wfunc/musicalchairs/logger"
	"github.com/wfunc/musicalchairs/network"
	"github.com/wfunc/musicalchairs/session"
	"github.com/wfunc/musicalchairs/timer"
)

// RoomStatus 表示房间的业务状态
type RoomStatus int

const (
	StatusWaiting RoomStatus = iota
	StatusPlaying
	StatusFinished
	StatusFailed
)

func (s RoomStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "waiting"
	}
}

var ErrAlreadyStarted = errors.New("room already started")

// Room hosts one game of musical chairs and the spectators watching it.
type Room struct {
	ID         string
	Players    int
	Game       *game.Game
	Spectators map[string]*session.Session // sessionID -> session
	CreatedAt  time.Time

	status      RoomStatus
	result      game.Result
	err         error
	broadcaster Broadcaster
	notifier    game.Notifier
	statusMutex sync.RWMutex
	viewerMutex sync.RWMutex
	done        chan struct{}
}

// NewRoom builds a room and its game. Events go to notifier first, then to
// the room's spectators through broadcaster. Either may be nil.
func NewRoom(id string, players int, durations timer.Provider, broadcaster Broadcaster, notifier game.Notifier) (*Room, error) {
	r := &Room{
		ID:          id,
		Players:     players,
		Spectators:  make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		status:      StatusWaiting,
		broadcaster: broadcaster,
		notifier:    notifier,
		done:        make(chan struct{}),
	}

	g, err := game.New(game.Options{
		ID:            id,
		Players:       players,
		RoundDuration: durations,
		Notifier:      r,
	})
	if err != nil {
		return nil, err
	}
	r.Game = g
	return r, nil
}

// Notify implements game.Notifier.
func (r *Room) Notify(e game.Event) {
	if r.notifier != nil {
		r.notifier.Notify(e)
	}
	if r.broadcaster == nil {
		return
	}
	msgID, data, err := network.EncodeEvent(e)
	if err != nil {
		logger.Log.Errorw("encode event", "room", r.ID, "kind", e.Kind, "error", err)
		return
	}
	if err := r.Broadcast(msgID, data); err != nil {
		logger.Log.Warnw("broadcast event", "room", r.ID, "kind", e.Kind, "error", err)
	}
}

// Broadcast sends a message to all spectators in the room.
func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

// Start plays the game in the background. It can be called once.
func (r *Room) Start(ctx context.Context) error {
	r.statusMutex.Lock()
	if r.status != StatusWaiting {
		r.statusMutex.Unlock()
		return ErrAlreadyStarted
	}
	r.status = StatusPlaying
	r.statusMutex.Unlock()

	go r.run(ctx)
	return nil
}

func (r *Room) run(ctx context.Context) {
	defer close(r.done)

	res, err := r.Game.Run(ctx)

	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	r.result, r.err = res, err
	if err != nil {
		r.status = StatusFailed
		logger.Log.Errorw("room failed", "room", r.ID, "error", err)
		return
	}
	r.status = StatusFinished
}

// Wait blocks until the game ends or ctx is done.
func (r *Room) Wait(ctx context.Context) (game.Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return game.Result{}, ctx.Err()
	}
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.result, r.err
}

// Done is closed when the game has ended.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// GetID 返回房间ID
func (r *Room) GetID() string {
	return r.ID
}

// GetStatus 获取房间的业务状态
func (r *Room) GetStatus() RoomStatus {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.status
}

// AddSpectator attaches a session to the room's event feed.
func (r *Room) AddSpectator(s *session.Session) {
	r.viewerMutex.Lock()
	defer r.viewerMutex.Unlock()

	r.Spectators[s.ID] = s
	s.Watch(r.ID)
}

func (r *Room) RemoveSpectator(sessionID string) {
	r.viewerMutex.Lock()
	defer r.viewerMutex.Unlock()

	if s, exists := r.Spectators[sessionID]; exists {
		s.Watch("")
		delete(r.Spectators, sessionID)
	}
}

// GetSessions returns a slice of all spectator sessions (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.viewerMutex.RLock()
	defer r.viewerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Spectators))
	for _, s := range r.Spectators {
		sessions = append(sessions, s)
	}
	return sessions
}

// Summary is the JSON view of a room.
type Summary struct {
	ID         string    `json:"id"`
	Players    int       `json:"players"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase"`
	Round      int       `json:"round"`
	Active     int       `json:"active_players"`
	Chairs     []int     `json:"chairs"`
	Eliminated []int     `json:"eliminated"`
	Winner     int       `json:"winner,omitempty"`
	Error      string    `json:"error,omitempty"`
	Spectators int       `json:"spectators"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Room) Summary() Summary {
	snap := r.Game.Snapshot()

	r.statusMutex.RLock()
	status, err := r.status, r.err
	r.statusMutex.RUnlock()

	r.viewerMutex.RLock()
	viewers := len(r.Spectators)
	r.viewerMutex.RUnlock()

	s := Summary{
		ID:         r.ID,
		Players:    r.Players,
		Status:     status.String(),
		Phase:      r.Game.Phase(),
		Round:      snap.Round,
		Active:     snap.Players,
		Chairs:     snap.Chairs,
		Eliminated: snap.Eliminated,
		Winner:     snap.Winner,
		Spectators: viewers,
		CreatedAt:  r.CreatedAt,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom builds a room with a fresh id and adds it to the manager.
func (m *Manager) CreateRoom(players int, durations timer.Provider, broadcaster Broadcaster, notifier game.Notifier) (*Room, error) {
	room, err := NewRoom(uuid.New().String(), players, durations, broadcaster, notifier)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rooms[room.ID] = room
	return room, nil
}

// RemoveRoom 从管理器中移除一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// List returns every room, oldest first.
func (m *Manager) List() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

// ActiveCount returns how many rooms are currently playing.
func (m *Manager) ActiveCount() int {
	n := 0
	for _, room := range m.List() {
		if room.GetStatus() == StatusPlaying {
			n++
		}
	}
	return n
}
