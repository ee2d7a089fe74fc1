package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

func main() {
	LoadEnv(".env")
	cfg, err := ParseServerConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal("server stopped", "err", err)
	}
}

func run(cfg ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open stats db: %w", err)
	}
	defer db.Close()

	recorder := NewAnalytics(db)
	defer recorder.Stop()

	gameCfg := DefaultGameConfig()
	store, closeStore, err := openStore(ctx, cfg, gameCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := NewEngine(gameCfg, NewRand(cfg.Seed), recorder)
	matches := NewMatchmakingService(store, engine, DailyChallenges{})

	hub := NewHub(matches.GetMatch)
	matches.OnUpdate(hub.Publish)
	go hub.Run(ctx)

	app := &App{
		Matches:       matches,
		Stats:         db,
		Auth:          NewAuth(db),
		Hub:           hub,
		Recorder:      recorder,
		PublicURL:     cfg.PublicURL,
		RequireTokens: cfg.RequireTokens,
	}
	server := &http.Server{Addr: cfg.Addr, Handler: SetupRoutes(app)}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	for i := 0; i < cfg.Bots; i++ {
		bot := NewBot(localURL(cfg.Addr), cfg.BotArena, fmt.Sprintf("bot%d", i+1), NewRand(0))
		go func() {
			if err := bot.Run(ctx); err != nil {
				log.Warn("bot exited", "err", err)
			}
		}()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "err", err)
		server.Close()
	}
	return nil
}

// openStore builds the session store chosen by cfg.Store
func openStore(ctx context.Context, cfg ServerConfig, gameCfg GameConfig) (SessionStore, func(), error) {
	recordTTL := time.Duration(gameCfg.RecordTTLMs) * time.Millisecond
	actionTTL := time.Duration(gameCfg.ActionRetention) * time.Millisecond

	switch cfg.Store {
	case StoreMemory:
		s := NewMemoryStore(recordTTL, actionTTL)
		return s, func() { s.Close() }, nil

	case StoreNATS:
		s, err := DialNATSStore(ctx, cfg.NATSURL, recordTTL, actionTTL, nats.Name("survivor-arena"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn("close nats store", "err", err)
			}
		}, nil

	case StoreNATSEmbedded:
		ns, err := StartEmbeddedNATS(cfg.NATSDir)
		if err != nil {
			return nil, nil, err
		}
		s, err := DialNATSStore(ctx, ns.ClientURL(), recordTTL, actionTTL, nats.InProcessServer(ns))
		if err != nil {
			ns.Shutdown()
			return nil, nil, err
		}
		log.Info("embedded nats started", "dir", cfg.NATSDir)
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn("close nats store", "err", err)
			}
			ns.Shutdown()
			ns.WaitForShutdown()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
