package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jordan/alivia/internal/tracing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsInbound struct {
	UserInput string `json:"user_input"`
	SessionID string `json:"session_id"`
}

type wsOutbound struct {
	Type      string `json:"type"` // fragment, done, error
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// handleChatWS serves a persistent chat connection. Each inbound message
// runs one turn; fragments are forwarded as they arrive, terminated by a
// done frame carrying the resolved session id.
func (s *Server) handleChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().Msg("WebSocket chat connected")

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}

		if msg := s.validateMessage(in.UserInput); msg != "" {
			if err := conn.WriteJSON(wsOutbound{Type: "error", Message: msg}); err != nil {
				return
			}
			continue
		}

		sessionID, fragments := s.engine.ProcessTurn(ctx, in.SessionID, in.UserInput)
		for fragment := range fragments {
			conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := conn.WriteJSON(wsOutbound{Type: "fragment", Message: fragment}); err != nil {
				logger.Warn().Err(err).Msg("WebSocket write failed mid-turn")
				return
			}
		}

		conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if err := conn.WriteJSON(wsOutbound{Type: "done", SessionID: sessionID}); err != nil {
			return
		}
	}
}
