package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ocrs/internal/usecase"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey       = "requestID"
	clientRequestIDKey = "clientRequestID"
)

// maxClientRequestIDLen bounds the client ID copied into the access log.
const maxClientRequestIDLen = 128

// RequestID assigns every request a fresh server-side ID and returns it in
// the response headers. An ID sent by the client is kept only for the access
// log, so request log rows never collide.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if client := c.GetHeader(RequestIDHeader); client != "" {
			if len(client) > maxClientRequestIDLen {
				client = client[:maxClientRequestIDLen]
			}
			c.Set(clientRequestIDKey, client)
		}
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "" if the middleware
// did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog writes one line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", GetRequestID(c)),
			zap.String("client_request_id", c.GetString(clientRequestIDKey)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Recovery turns a panic into the generic recognition failure envelope with
// HTTP 200, like every other pipeline outcome.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("panic while handling request",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", GetRequestID(c)),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusOK, NewErrorResponse(usecase.KindRecognitionFailed))
	})
}

// LimitBody caps the number of body bytes a handler may read. Reading past
// the cap yields *http.MaxBytesError.
func LimitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
