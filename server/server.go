package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/musicalchairs/broadcast"
	"github.com/wfunc/musicalchairs/game"
	"github.com/wfunc/musicalchairs/logger"
	"github.com/wfunc/musicalchairs/monitor"
	"github.com/wfunc/musicalchairs/network"
	"github.com/wfunc/musicalchairs/room"
	"github.com/wfunc/musicalchairs/session"
	"github.com/wfunc/musicalchairs/timer"
)

// Options configure a GameServer. Notifier receives every game event before
// the room's spectators do; Monitor, when set, also serves /metrics.
type Options struct {
	Addr          string
	Players       int
	RoundDuration timer.Provider
	Notifier      game.Notifier
	Monitor       *monitor.Monitor
	Heartbeat     time.Duration
}

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    *broadcast.RoomBroadcaster
	notifier       game.Notifier
	monitor        *monitor.Monitor
	players        int
	durations      timer.Provider
	heartbeat      time.Duration
	httpServer     *http.Server

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

func NewGameServer(opts Options) *GameServer {
	if opts.Players < 2 {
		opts.Players = 4
	}
	if opts.RoundDuration == nil {
		opts.RoundDuration = timer.Fixed(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		addr:           opts.Addr,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		notifier:       opts.Notifier,
		monitor:        opts.Monitor,
		players:        opts.Players,
		durations:      opts.RoundDuration,
		heartbeat:      opts.Heartbeat,
		ctx:            ctx,
		cancel:         cancel,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // spectators may come from any origin
			},
		},
	}
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.heartbeat > 0 {
		go s.reapIdle()
	}
	return s
}

// reapIdle drops spectators that stayed silent for two heartbeats.
func (s *GameServer) reapIdle() {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownChan:
			return
		case now := <-ticker.C:
			for _, sess := range s.sessionManager.CloseIdle(now, 2*s.heartbeat) {
				if rm, ok := s.roomManager.GetRoom(sess.RoomID()); ok {
					rm.RemoveSpectator(sess.GetID())
				}
				logger.Log.Infow("idle spectator dropped", "session", sess.GetID())
			}
		}
	}
}

// Handler returns the HTTP routes: the room API, the spectator socket and,
// with a monitor, the metrics endpoint.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.monitor != nil {
		mux.Handle("GET /metrics", s.monitor.Handler())
	}
	return mux
}

func (s *GameServer) RoomManager() *room.Manager {
	return s.roomManager
}

func (s *GameServer) SessionManager() *session.Manager {
	return s.sessionManager
}

func (s *GameServer) Broadcaster() *broadcast.RoomBroadcaster {
	return s.broadcaster
}

// NewRoom creates a room wired to the server's notifier and spectators
// without starting it.
func (s *GameServer) NewRoom(players int) (*room.Room, error) {
	return s.roomManager.CreateRoom(players, s.durations, s.broadcaster, s.notifier)
}

// StartRoom plays r under ctx and keeps the metrics balanced if it fails.
func (s *GameServer) StartRoom(ctx context.Context, r *room.Room) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	logger.Log.Infow("room started", "room", r.ID, "players", r.Players)

	go func() {
		<-r.Done()
		if r.GetStatus() != room.StatusFailed {
			return
		}
		if s.monitor != nil && r.Game.Snapshot().Round > 0 {
			s.monitor.GameAborted(r.ID)
		}
	}()
	return nil
}

// CreateRoom creates a room and starts it under ctx.
func (s *GameServer) CreateRoom(ctx context.Context, players int) (*room.Room, error) {
	r, err := s.NewRoom(players)
	if err != nil {
		return nil, err
	}
	if err := s.StartRoom(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Start serves HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, cancels rooms started over HTTP and
// disconnects every spectator.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.cancel()
		err = s.httpServer.Shutdown(ctx)
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
	})
	return err
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.roomManager.List()
	summaries := make([]room.Summary, 0, len(rooms))
	for _, rm := range rooms {
		summaries = append(summaries, rm.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, exists := s.roomManager.GetRoom(r.PathValue("id"))
	if !exists {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rm.Summary())
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	players := s.players
	if v := r.URL.Query().Get("players"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "players must be a number", http.StatusBadRequest)
			return
		}
		players = n
	}

	rm, err := s.CreateRoom(s.ctx, players)
	if err != nil {
		if errors.Is(err, game.ErrInvalidConfig) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.Errorw("create room", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rm.Summary())
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rm, exists := s.roomManager.GetRoom(r.URL.Query().Get("room"))
	if !exists {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(rm, conn)
}

func (s *GameServer) handleConnection(rm *room.Room, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)

	logger.Log.Infow("spectator connected", "addr", wsConn.RemoteAddr().String(), "session", sess.GetID(), "room", rm.ID)

	defer func() {
		logger.Log.Infow("spectator disconnected", "session", sess.GetID(), "room", rm.ID)
		rm.RemoveSpectator(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
	}()

	if err := s.sendRoomState(sess, rm); err != nil {
		return
	}
	rm.AddSpectator(sess)

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, rm, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, rm *room.Room, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
		if err := sess.Send(network.MsgTypeHeartbeat, nil); err != nil {
			logger.Log.Debugw("heartbeat reply", "session", sess.GetID(), "error", err)
		}
	case network.MsgTypeRoomState:
		if err := s.sendRoomState(sess, rm); err != nil {
			logger.Log.Debugw("room state reply", "session", sess.GetID(), "error", err)
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) sendRoomState(sess *session.Session, rm *room.Room) error {
	data, err := json.Marshal(rm.Summary())
	if err != nil {
		return err
	}
	return sess.Send(network.MsgTypeRoomState, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("write response", "error", err)
	}
}
