package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/zkv-server/internal/admin"
	"github.com/edirooss/zkv-server/internal/command"
	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/pubsub"
	"github.com/edirooss/zkv-server/internal/rdb"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/server"
	"github.com/edirooss/zkv-server/internal/store"
)

func main() {
	// Create Zap logger
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("bad configuration", zap.Error(err))
	}

	st := store.New(log)
	if err := rdb.LoadFile(log, filepath.Join(cfg.Dir, cfg.DBFilename), st); err != nil {
		log.Warn("snapshot load failed, starting empty", zap.Error(err))
	}

	role := repl.RoleMaster
	if cfg.IsReplica() {
		role = repl.RoleSlave
	}
	rs := repl.NewState(log, role, cfg.ReplID)

	hub := pubsub.New(log)
	dispatch := command.NewDispatcher(log, cfg, st, hub, rs)
	srv := server.New(log, cfg, dispatch, hub, rs)

	// Socket setup failure is the one startup error with a dedicated
	// exit status.
	if err := srv.Listen(); err != nil {
		log.Error("socket setup failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })

	if cfg.IsReplica() {
		link := repl.NewLink(log, cfg, st, rs, dispatch.Apply)
		// A broken primary link does not take the server down; the
		// replica keeps serving reads from whatever it has.
		go func() {
			if err := link.Run(ctx); err != nil && ctx.Err() == nil {
				log.Warn("primary link lost", zap.Error(err))
			}
		}()
	}

	if cfg.AdminAddr != "" {
		g.Go(func() error { return admin.New(log, cfg, st, rs).Run(ctx) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}
