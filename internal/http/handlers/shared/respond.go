package shared

import (
	"github.com/farewire/farewire/internal/http/response"
	"github.com/farewire/farewire/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog returns a logger carrying the request id.
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError logs the error and writes the error envelope. The raw
// error never reaches the client.
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Warnw("request_error",
			"code", code,
			"msg", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}
