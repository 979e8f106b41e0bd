package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes
	s.echo.GET("/api/start/:channel", s.handleStart)
	s.echo.GET("/api/leaderboard/:channel", s.handleLeaderboard)
	s.echo.GET("/api/channel/:channel", s.handleChannel)

	// Dashboard WebSocket
	s.echo.GET("/ws", s.handleWebSocket)

	// Static dashboard assets
	s.echo.Static("/", s.config.PublicDir)
}
