package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/config"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/hub"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/identity"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/logging"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/server"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/seventv"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/store"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/tracker"
)

func setupConfig() *config.Config {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, sup *tracker.Supervisor, h *hub.Hub, cancelSaver context.CancelFunc, saverDone <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()
		sup.StopAll()

		// Stopping the saver triggers a final flush.
		cancelSaver()
		select {
		case <-saverDone:
		case <-time.After(10 * time.Second):
			slog.Error("State saver did not finish in time")
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	st := store.New(cfg.DataFile, clock)
	st.Load()

	saverCtx, cancelSaver := context.WithCancel(context.Background())
	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		st.RunSaver(saverCtx, cfg.SaveInterval)
	}()

	sevenTV := seventv.NewClient(cfg.SevenTVBaseURL)
	identityCache := identity.NewCache(sevenTV.LookupUser)

	h := hub.NewHub(st.InitSnapshot, cfg.MaxClients, clock)
	sup := tracker.NewSupervisor(st, sevenTV, identityCache, h, cfg.ReconnectDelay, clock)

	srv := server.NewServer(cfg, sup, st, h)

	done := runGracefulShutdown(srv, sup, h, cancelSaver, saverDone)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
