package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/studiotv/internal/config"
	"github.com/claude/studiotv/internal/display"
	"github.com/claude/studiotv/internal/notify"
	"github.com/claude/studiotv/internal/progress"
	"github.com/claude/studiotv/internal/records"
	"github.com/claude/studiotv/internal/server"
	"github.com/claude/studiotv/internal/session"
	"github.com/claude/studiotv/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("StudioTV starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	trainerID, err := uuid.Parse(cfg.Engine.TrainerID)
	if err != nil {
		log.Error("engine.trainer_id is not a valid UUID", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Redis carries per-workout change notifications. The engine degrades to
	// poll-only when it is unreachable, so a ping failure is not fatal.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var notifier notify.Notifier
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, running poll-only", "addr", cfg.Redis.Addr, "error", err)
	} else {
		notifier = notify.NewRedisNotifier(redisClient, log)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// Shown-screen flags persist across restarts
	flags, err := display.OpenFlagStore(cfg.State.Dir)
	if err != nil {
		log.Error("failed to open flag store", "dir", cfg.State.Dir, "error", err)
		os.Exit(1)
	}
	defer flags.Close()

	// Engine components
	locator := session.NewLocator(db, notifier, trainerID,
		time.Duration(cfg.Engine.PollIntervalSeconds)*time.Second,
		cfg.Engine.CandidateWindow, log)
	detector := records.NewDetector(db, locator, log)
	tracker := progress.NewTracker(progress.NewBuilder(db, log), locator)
	controller := display.NewController(locator, detector, tracker, flags, log)

	go locator.Run(ctx)
	go detector.Run(ctx)
	go tracker.Run(ctx)
	go controller.Run(ctx)

	// Create server
	srv := server.New(locator, detector, tracker, controller, cfg.Auth.APIKey, log)

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
