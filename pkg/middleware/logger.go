package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// quietPaths are polled by orchestrators and scrapers; successful hits are logged at debug.
var quietPaths = []string{"/metrics", "/api/v1/health"}

// Logger writes one access log line per request. The level follows the response status.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// render now so the logged status is the one the client sees
				c.Error(err)
			}

			req := c.Request()
			ctx := req.Context()
			status := c.Response().Status

			fields := context.LogFields(ctx)
			fields["method"] = req.Method
			fields["route"] = c.Path()
			fields["status"] = status
			fields["latency_ms"] = time.Since(start).Milliseconds()
			fields["bytes_out"] = c.Response().Size
			fields["remote_ip"] = c.RealIP()

			log := logger.WithContext(ctx).WithFields(fields)
			switch {
			case status >= http.StatusInternalServerError:
				log.Error("Request failed")
			case status >= http.StatusBadRequest:
				log.Warn("Request rejected")
			case isQuiet(req.URL.Path):
				log.Debug("Request")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
