// Package server exposes the conversation engine over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jordan/alivia/internal/observability"
	"github.com/jordan/alivia/pkg/mailer"
	"github.com/rs/zerolog"
)

// ConversationEngine is the engine surface the transport layer needs.
type ConversationEngine interface {
	ProcessTurn(ctx context.Context, sessionID, userText string) (string, <-chan string)
	GenerateSummary(ctx context.Context, sessionID string) (string, error)
	ClearSession(sessionID string)
}

// Config holds transport settings.
type Config struct {
	Host           string
	Port           int
	MaxInputLength int
	MailSubject    string
}

// Server wires the HTTP routes to the engine and mail transport.
type Server struct {
	cfg    Config
	engine ConversationEngine
	sender mailer.Sender
	logger zerolog.Logger
	http   *http.Server
}

// New creates a server. sender may be nil, which disables the mail leg of
// the summary endpoint.
func New(cfg Config, engine ConversationEngine, sender mailer.Sender, logger zerolog.Logger) *Server {
	observability.EnsureRegistered()

	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = 5000
	}

	return &Server{
		cfg:    cfg,
		engine: engine,
		sender: sender,
		logger: logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestMiddleware())

	// Browser clients hit the SSE and websocket endpoints cross-origin
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Accept", requestIDHeader)
	corsCfg.ExposeHeaders = []string{sessionIDHeader, requestIDHeader}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	chat := router.Group("/chat")
	{
		chat.POST("/stream", s.handleChatStream)
		chat.GET("/ws", s.handleChatWS)
	}

	router.POST("/summary", s.handleSummary)
	router.DELETE("/sessions/:id", s.handleClearSession)

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
