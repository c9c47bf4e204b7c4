package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/musicalchairs/broadcast"
	"github.com/wfunc/musicalchairs/config"
	"github.com/wfunc/musicalchairs/logger"
	"github.com/wfunc/musicalchairs/monitor"
	"github.com/wfunc/musicalchairs/server"
	"github.com/wfunc/musicalchairs/timer"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "musicalchairs",
		Short: "Play musical chairs with one goroutine per player",
		Long: `Plays one or more tables of musical chairs. Every player is a goroutine
racing for a shrinking set of chairs each time the music stops, until a
single winner is left. With --listen the games can also be watched over
a websocket and new ones started over HTTP.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.StringP("config", "c", ".", "directory holding config.yaml")
	f.IntP("players", "p", 4, "players per table")
	f.IntP("tables", "t", 1, "tables played concurrently")
	f.Duration("min-round", 0, "shortest time the music plays")
	f.Duration("max-round", 10*time.Second, "longest time the music plays")
	f.StringP("listen", "l", "", "address for the spectator feed and /metrics")
	f.String("log-level", "info", "debug, info, warn or error")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Watch(dir, cmd.Flags(), func(next *config.Config) {
		if err := logger.SetLevel(next.Log.Level); err != nil {
			logger.Log.Warnw("log level unchanged", "level", next.Log.Level, "error", err)
		}
	})
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := monitor.NewMonitor("musicalchairs", nil)
	console := broadcast.NewConsole(cmd.OutOrStdout())
	console.Prefix = cfg.Game.Tables > 1

	srv := server.NewGameServer(server.Options{
		Addr:          cfg.Server.HTTPAddress,
		Players:       cfg.Game.Players,
		RoundDuration: timer.Uniform(cfg.Game.MinRound, cfg.Game.MaxRound),
		Notifier:      broadcast.NewHub(console, mon),
		Monitor:       mon,
		Heartbeat:     30 * time.Second,
	})
	serving := cfg.Server.HTTPAddress != ""
	if serving {
		go func() {
			if err := srv.Start(); err != nil {
				logger.Log.Errorw("server stopped", "error", err)
				stop()
			}
		}()
	}

	var tables errgroup.Group
	for i := 0; i < cfg.Game.Tables; i++ {
		rm, err := srv.CreateRoom(ctx, cfg.Game.Players)
		if err != nil {
			return err
		}
		tables.Go(func() error {
			res, err := rm.Wait(context.Background())
			if err != nil {
				return fmt.Errorf("table %s: %w", rm.ID, err)
			}
			logger.Log.Infow("game finished", "room", rm.ID, "winner", res.Winner, "rounds", res.Rounds, "eliminated", res.Eliminated)
			return nil
		})
	}
	err = tables.Wait()

	if serving && ctx.Err() == nil {
		logger.Log.Infow("all tables finished, still serving", "addr", cfg.Server.HTTPAddress)
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Log.Warnw("server shutdown", "error", serr)
	}
	return err
}
