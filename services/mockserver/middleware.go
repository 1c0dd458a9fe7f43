package mockserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paycrest/e2e/utils/logger"
)

// RequestLogger logs every request a mock server answered
func RequestLogger(server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(logger.Fields{
			"Server":  server,
			"Method":  c.Request.Method,
			"Path":    c.Request.URL.Path,
			"Status":  c.Writer.Status(),
			"Latency": time.Since(start).String(),
			"Client":  c.ClientIP(),
		}).Debugf("mock request")
	}
}
