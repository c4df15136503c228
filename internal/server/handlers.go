package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jordan/alivia/internal/tracing"
	"github.com/jordan/alivia/pkg/engine"
)

const sessionIDHeader = "X-Session-ID"

type chatRequest struct {
	UserInput string `json:"user_input" binding:"required"`
	SessionID string `json:"session_id"`
}

type summaryRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Email     string `json:"email"`
}

// validateMessage enforces the input contract before the engine runs.
func (s *Server) validateMessage(message string) string {
	if strings.TrimSpace(message) == "" {
		return "message must not be blank"
	}
	if len([]rune(message)) > s.cfg.MaxInputLength {
		return "message exceeds the maximum length"
	}
	return ""
}

// handleChatStream runs one conversation turn. Clients that accept
// text/event-stream get fragments as SSE events; everyone else gets the
// assembled response as JSON. The resolved session id travels in the
// X-Session-ID header either way.
func (s *Server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := s.validateMessage(req.UserInput); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	sessionID, fragments := s.engine.ProcessTurn(ctx, req.SessionID, req.UserInput)
	c.Header(sessionIDHeader, sessionID)

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		s.streamSSE(c, fragments)
		return
	}

	var full strings.Builder
	for fragment := range fragments {
		full.WriteString(fragment)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    full.String(),
		"session_id": sessionID,
	})
}

func (s *Server) streamSSE(c *gin.Context, fragments <-chan string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				c.SSEvent("done", "")
				return false
			}
			c.SSEvent("message", gin.H{"message": fragment})
			return true
		case <-clientGone:
			return false
		}
	})
}

// handleSummary generates the session summary and, when a recipient and a
// mail transport are configured, delivers it by mail. A missing history is a
// 404; a failed delivery is a 502 distinct from generation failure.
func (s *Server) handleSummary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	summary, err := s.engine.GenerateSummary(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, engine.ErrNoHistory) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session has no conversation history"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate summary"})
		return
	}

	mailed := false
	if req.Email != "" {
		if s.sender == nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "mail delivery is not configured"})
			return
		}
		if err := s.sender.Send(ctx, req.Email, s.cfg.MailSubject, summary); err != nil {
			logger.Error().Err(err).Msg("Summary mail failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to deliver summary mail"})
			return
		}
		mailed = true
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"mailed":  mailed,
	})
}

func (s *Server) handleClearSession(c *gin.Context) {
	s.engine.ClearSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}
