package server

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Twitch login format: alphanumeric plus underscore, up to 25 characters.
var channelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,25}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from a different origin
	},
}

func (s *Server) handleStart(c echo.Context) error {
	channel := strings.ToLower(c.Param("channel"))
	if !channelNamePattern.MatchString(channel) {
		return c.JSON(400, map[string]string{"error": "invalid channel name"})
	}

	if !s.startLimiter.Allow() {
		return c.JSON(429, map[string]string{"error": "too many tracking requests"})
	}

	if _, err := s.tracker.EnsureTracking(c.Request().Context(), channel); err != nil {
		slog.Error("Failed to start tracking", "channel", channel, "error", err)
		return c.JSON(502, map[string]string{"error": "failed to start tracking"})
	}

	return c.JSON(200, map[string]bool{"success": true})
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	channel := strings.ToLower(c.Param("channel"))
	return c.JSON(200, s.store.Leaderboard(channel))
}

func (s *Server) handleChannel(c echo.Context) error {
	channel := strings.ToLower(c.Param("channel"))
	snapshot, ok := s.store.Snapshot(channel)
	if !ok {
		return c.JSON(404, map[string]string{"error": "channel not tracked"})
	}
	return c.JSON(200, snapshot)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	// Register sends the init snapshot as the first message.
	if err := s.hub.Register(conn); err != nil {
		slog.Warn("Failed to register client", "error", err)
		// connection already closed by the hub
		return nil
	}

	// Read pump (blocks until disconnect)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil
}
