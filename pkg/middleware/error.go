package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders handler errors as ErrorResponse. Internal errors are not echoed to the client.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()

		status, body := describe(err)
		body.RequestID = context.GetRequestID(ctx)
		body.TraceID = tracing.GetTraceID(ctx)

		log := logger.WithContext(ctx).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			log.Error("Returning server error")
		} else {
			log.Warn("Returning client error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func describe(err error) (int, ErrorResponse) {
	body := ErrorResponse{Meta: map[string]any{}}

	if httperror.IsHTTPError(err) {
		he := httperror.ToHTTPError(err)
		body.Message = he.Error()
		if he.Meta != nil {
			body.Meta = he.Meta
		}
		return httperror.GetStatusCode(err), body
	}

	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		body.Message = fmt.Sprint(ee.Message)
		return ee.Code, body
	}

	body.Message = http.StatusText(http.StatusInternalServerError)
	return http.StatusInternalServerError, body
}
