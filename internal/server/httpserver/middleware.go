package httpserver

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or mints one, echoes it back and
// stores it in the request context for the logger.
func (s *HTTPServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *HTTPServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method + " " + route
		code := c.Writer.Status()

		if s.metrics != nil {
			s.metrics.Observe("http", method, strconv.Itoa(code), elapsed)
		}

		args := []any{"method", method, "path", c.Request.URL.Path, "status", code, "duration", elapsed.String()}
		if code >= 500 {
			s.logger.Error(c.Request.Context(), "http request", args...)
			return
		}
		s.logger.Info(c.Request.Context(), "http request", args...)
	}
}

func (s *HTTPServer) recovered(c *gin.Context, p any) {
	s.logger.Error(c.Request.Context(), "panic in http handler", "path", c.Request.URL.Path, "panic", p)
	writeError(c, common.ErrInternal)
	c.Abort()
}
