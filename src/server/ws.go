package server

import (
	"net/http"

	"market-relay/src/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

// handleWebSocket upgrades the browser connection and hands it to a relay
// session, which owns its upstream vendor connection exclusively. The
// handler blocks until the browser disconnects.
func (s *RelayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	session := relay.NewSession(conn, s.dialer, s.db, s.Config.LogLevel)
	s.Logger.Info("browser connected, session %s", session.ID)

	s.openSessions.Add(1)
	defer s.openSessions.Add(-1)

	session.Run()
}
