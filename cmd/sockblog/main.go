package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/s00inx/sockblog/blog"
	"github.com/s00inx/sockblog/server"
	"github.com/s00inx/sockblog/server/config"
	"github.com/s00inx/sockblog/server/engine"
	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/router"
	"github.com/s00inx/sockblog/server/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// shared state, created once and passed down
	mc := metrics.NewCollector(cfg.MetricsWindow)
	reg := metrics.NewRegistry(mc)
	sessions := session.NewStore(cfg.SessionTTL)
	store := blog.NewMemStore()

	app, err := blog.New(store, blog.NewAuth(store, sessions), mc,
		blog.WithLogger(log.Named("blog")),
		blog.WithRegistry(reg),
	)
	if err != nil {
		return err
	}
	r := router.NewHTTPRouter()
	app.Routes(r)

	srv := server.New(cfg, r, mc,
		server.WithLogger(log.Named("server")),
		server.WithRegistry(reg),
	)

	log.Info("listening", zap.String("addr", cfg.Addr()), zap.String("static_root", cfg.StaticRoot))
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, engine.ErrServerClosed) {
		return err
	}
	return nil
}
