package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/config"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/hub"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/store"
)

// Tracker starts channel tracking on demand.
type Tracker interface {
	EnsureTracking(ctx context.Context, channel string) (*store.Channel, error)
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	tracker      Tracker
	store        *store.Store
	hub          *hub.Hub
	startLimiter *rate.Limiter
	startTime    time.Time
}

func NewServer(cfg *config.Config, sup Tracker, st *store.Store, h *hub.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	srv := &Server{
		echo:         e,
		config:       cfg,
		tracker:      sup,
		store:        st,
		hub:          h,
		startLimiter: rate.NewLimiter(rate.Limit(cfg.StartRate), cfg.StartBurst),
		startTime:    time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
