package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fetris/internal/config"
	"github.com/DoyleJ11/fetris/internal/httpapi"
	"github.com/DoyleJ11/fetris/internal/hub"
	"github.com/DoyleJ11/fetris/internal/leaderboard"
	"github.com/DoyleJ11/fetris/internal/logger"
	"github.com/DoyleJ11/fetris/internal/match"
	"github.com/DoyleJ11/fetris/internal/network"
	"github.com/DoyleJ11/fetris/internal/storage"
	"github.com/DoyleJ11/fetris/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
	zl.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		recorders []match.Recorder
		history   httpapi.History
		board     *leaderboard.Leaderboard
	)
	if cfg.DatabaseURL != "" {
		store, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		defer store.Close()
		recorders = append(recorders, store)
		history = store
		log.Info("match history enabled")
	}
	if cfg.RedisAddr != "" {
		lb, err := leaderboard.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, leaderboard.DefaultPrefix)
		if err != nil {
			// the game runs fine without a leaderboard
			log.Warn("leaderboard disabled", zap.Error(err))
		} else {
			defer lb.Close()
			board = lb
			recorders = append(recorders, lb)
		}
	}

	dispatcher := match.NewDispatcher(log, 5*time.Second, recorders...)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- dispatcher.Run(dispatchCtx) }()

	// the hub outlives the listeners so that pending disconnects still reach it
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	h := hub.NewHub(hubCtx, hub.Config{
		PoolSize:   cfg.PoolSize,
		Tick:       cfg.Tick,
		Resolution: cfg.Resolution,
		OnFinish:   dispatcher.Submit,
	}, log)

	tcp := network.NewServer(h, network.Config{
		OutboxSize:   cfg.OutboxSize,
		WriteTimeout: cfg.WriteTimeout,
		InputRate:    cfg.InputRate,
		InputBurst:   cfg.InputBurst,
	}, log)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(h, httpapi.Deps{
			WS: ws.Config{
				OutboxSize:   cfg.OutboxSize,
				WriteTimeout: cfg.WriteTimeout,
				InputRate:    cfg.InputRate,
				InputBurst:   cfg.InputBurst,
			},
			Leaderboard: board,
			History:     history,
			Log:         log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcp.ListenAndServe(gctx, cfg.TCPAddr)
	})
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	stopHub()
	<-h.Done()
	stopDispatch()
	<-dispatchDone
	return err
}
