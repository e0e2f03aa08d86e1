package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if err := InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer SyncLogger()

	history, err := OpenHistory(":memory:")
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	admin, err := NewAdmin(cfg)
	if err != nil {
		return err
	}
	if !admin.Enabled() {
		Log.Infow("admin endpoints disabled, set ADMIN_PASSWORD to enable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := NewHub(ctx, cfg, history)
	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           SetupRoutes(hub, admin, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	eg.Go(func() error {
		Log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		Log.Infow("shutting down")
		hub.rooms.StopAll()
		hub.CloseAll()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	return eg.Wait()
}
