package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jordan/alivia/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const requestIDHeader = "X-Request-ID"

// requestMiddleware attaches a request id and trace context to every
// request and logs its outcome.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			if id, err := gonanoid.New(); err == nil {
				requestID = id
			}
		}

		ctx := tracing.NewRequestContext(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
