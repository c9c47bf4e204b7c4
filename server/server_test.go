package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/musicalchairs/game"
	"github.com/wfunc/musicalchairs/monitor"
	"github.com/wfunc/musicalchairs/network"
	"github.com/wfunc/musicalchairs/room"
	"github.com/wfunc/musicalchairs/timer"
)

func newTestServer(t *testing.T, opts Options) (*GameServer, *httptest.Server) {
	t.Helper()
	s := NewGameServer(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?room=" + roomID
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readPacket(t *testing.T, c *websocket.Conn) *network.Packet {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	packet, err := network.Decode(data)
	require.NoError(t, err)
	return packet
}

func TestCreateAndListRooms(t *testing.T) {
	s, ts := newTestServer(t, Options{Players: 4})

	resp, err := http.Post(ts.URL+"/rooms?players=3", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, 3, created.Players)
	assert.NotEmpty(t, created.ID)

	rm, ok := s.RoomManager().GetRoom(created.ID)
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := rm.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Eliminated, 2)

	resp, err = http.Get(ts.URL + "/rooms/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var got room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "finished", got.Status)
	assert.Equal(t, res.Winner, got.Winner)
	assert.Equal(t, 1, got.Active)

	resp, err = http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestCreateRoom_DefaultPlayers(t *testing.T) {
	_, ts := newTestServer(t, Options{Players: 5})

	resp, err := http.Post(ts.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, 5, created.Players)
}

func TestCreateRoom_BadRequest(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, q := range []string{"players=1", "players=0", "players=abc"} {
		resp, err := http.Post(ts.URL+"/rooms?"+q, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestUnknownRoom(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/rooms/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ws?room=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSpectatorReceivesGame(t *testing.T) {
	s, ts := newTestServer(t, Options{RoundDuration: timer.Fixed(time.Millisecond)})

	rm, err := s.NewRoom(4)
	require.NoError(t, err)

	c := dial(t, ts, rm.ID)
	first := readPacket(t, c)
	require.Equal(t, uint16(network.MsgTypeRoomState), first.MsgID)
	var summary room.Summary
	require.NoError(t, json.Unmarshal(first.Data, &summary))
	assert.Equal(t, rm.ID, summary.ID)
	assert.Equal(t, "waiting", summary.Status)

	require.Eventually(t, func() bool { return len(rm.GetSessions()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.StartRoom(context.Background(), rm))

	counts := map[uint16]int{}
	var over game.Event
	for {
		packet := readPacket(t, c)
		counts[packet.MsgID]++
		if packet.MsgID == network.MsgTypeGameOver {
			require.NoError(t, json.Unmarshal(packet.Data, &over))
			break
		}
	}

	assert.Equal(t, 3, counts[network.MsgTypeRoundStarted])
	assert.Equal(t, 3, counts[network.MsgTypeMusicStopped])
	assert.Equal(t, 3, counts[network.MsgTypePlayerEliminated])
	assert.Equal(t, 3, counts[network.MsgTypeRoundSnapshot])
	assert.Equal(t, game.EventGameOver, over.Kind)
	assert.Equal(t, rm.ID, over.GameID)
	assert.NotZero(t, over.Winner)
	assert.Len(t, over.Eliminated, 3)
	assert.NotContains(t, over.Eliminated, over.Winner)
}

func TestSpectatorHeartbeat(t *testing.T) {
	s, ts := newTestServer(t, Options{Heartbeat: time.Second})

	rm, err := s.NewRoom(3)
	require.NoError(t, err)
	c := dial(t, ts, rm.ID)
	readPacket(t, c)

	frame, err := network.Encode(network.MsgTypeHeartbeat, nil)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, frame))
	assert.Equal(t, uint16(network.MsgTypeHeartbeat), readPacket(t, c).MsgID)

	frame, err = network.Encode(network.MsgTypeRoomState, nil)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, frame))
	assert.Equal(t, uint16(network.MsgTypeRoomState), readPacket(t, c).MsgID)
}

func TestSpectatorLeaves(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	rm, err := s.NewRoom(3)
	require.NoError(t, err)
	c := dial(t, ts, rm.ID)
	readPacket(t, c)
	require.Eventually(t, func() bool { return s.SessionManager().Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	c.Close()
	require.Eventually(t, func() bool {
		return s.SessionManager().Count() == 0 && len(rm.GetSessions()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestShutdownDisconnectsSpectators(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	rm, err := s.NewRoom(3)
	require.NoError(t, err)
	c := dial(t, ts, rm.ID)
	readPacket(t, c)
	require.Eventually(t, func() bool { return len(rm.GetSessions()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	m := monitor.NewMonitor("chairs_server_test", nil)
	s, ts := newTestServer(t, Options{Notifier: m, Monitor: m})

	rm, err := s.CreateRoom(context.Background(), 3)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = rm.Wait(ctx)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chairs_server_test_games_finished_total 1")
	assert.Contains(t, string(body), "chairs_server_test_eliminations_total 2")
}

func TestMetricsEndpoint_NoMonitor(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFailedRoomBalancesActiveGames(t *testing.T) {
	m := monitor.NewMonitor("chairs_abort_test", nil)
	s := NewGameServer(Options{Notifier: m, Monitor: m, RoundDuration: timer.Fixed(time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	rm, err := s.CreateRoom(ctx, 3)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rm.Game.Snapshot().Round == 1 }, 2*time.Second, time.Millisecond)
	cancel()

	<-rm.Done()
	assert.Equal(t, room.StatusFailed, rm.GetStatus())
	require.Eventually(t, func() bool {
		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(resp.Body.String(), "chairs_abort_test_active_games 0")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSilentSpectatorIsDropped(t *testing.T) {
	s, ts := newTestServer(t, Options{Heartbeat: 50 * time.Millisecond})

	rm, err := s.NewRoom(3)
	require.NoError(t, err)
	c := dial(t, ts, rm.ID)
	readPacket(t, c)
	require.Eventually(t, func() bool { return len(rm.GetSessions()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.SessionManager().Count() == 0 && len(rm.GetSessions()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
