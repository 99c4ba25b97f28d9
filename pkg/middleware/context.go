package middleware

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// HeaderShopID names the merchant a request acts on.
const HeaderShopID = "X-Shop-ID"

// Context stores the request ID, route, caller IP and shop on the request context. A missing
// request ID is generated and echoed back in the response headers.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := requestIDOf(req)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.SetRequestID(req.Context(), requestID)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if shopID := strings.TrimSpace(req.Header.Get(HeaderShopID)); shopID != "" {
				ctx = context.SetShopID(ctx, shopID)
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// RequireShop rejects requests without an X-Shop-ID header.
func RequireShop() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if context.GetShopID(c.Request().Context()) != "" {
				return next(c)
			}
			return httperror.NewHTTPError(http.StatusBadRequest, HeaderShopID+" header is required")
		}
	}
}

func requestIDOf(req *http.Request) string {
	if id := strings.TrimSpace(req.Header.Get(echo.HeaderXRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}
