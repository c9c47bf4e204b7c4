package monitor

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/musicalchairs/game"
)

func TestMonitor_CountsAGame(t *testing.T) {
	m := NewMonitor("chairs_test", nil)

	g, err := game.New(game.Options{Players: 5, Notifier: m})
	require.NoError(t, err)
	_, err = g.Run(context.Background())
	require.NoError(t, err)

	metrics := m.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GamesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GamesFinished))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveGames))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Rounds))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Eliminations))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.Chairs))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.SettleLatency))
}

func TestMonitor_ChairsGaugePerGame(t *testing.T) {
	m := NewMonitor("chairs_test", nil)
	m.Notify(game.Event{Kind: game.EventRoundStarted, GameID: "a", Round: 1, Chairs: 3})
	m.Notify(game.Event{Kind: game.EventRoundStarted, GameID: "b", Round: 2, Chairs: 5})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Metrics().Chairs.WithLabelValues("a")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Metrics().Chairs.WithLabelValues("b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().ActiveGames))

	m.GameAborted("a")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Metrics().ActiveGames))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("chairs_test", nil)
	m.Notify(game.Event{Kind: game.EventRoundState, Settle: time.Millisecond})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "chairs_test_race_settle_seconds_count 1"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestNewMonitor_Independent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMonitor("chairs_test", nil)
		NewMonitor("chairs_test", nil)
	})
}

func TestNewMonitor_SuppliedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor("chairs_test", reg)
	assert.Same(t, reg, m.Registry())

	m.Notify(game.Event{Kind: game.EventPlayerEliminated})
	n, err := testutil.GatherAndCount(reg, "chairs_test_eliminations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Panics(t, func() { NewMonitor("chairs_test", reg) })
}
