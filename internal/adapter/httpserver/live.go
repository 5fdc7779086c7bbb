package httpserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Feed is read-only public data; same-origin enforcement is left to the
	// fronting proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleLiveFeed upgrades the connection and streams every rendered view of
// the poll until the client goes away.
func (s *Server) handleLiveFeed(c echo.Context) error {
	pollID := c.Param("id")
	if _, err := s.engine.GetPoll(c.Request().Context(), pollID); err != nil {
		return s.rejectOrFail(c, err, "Failed to load poll for live feed")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response.
	}
	defer func() { _ = conn.Close() }()

	unsubscribe := s.hub.Subscribe(pollID, conn)
	defer unsubscribe()

	// Drain the read side to notice disconnects; subscribers never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
