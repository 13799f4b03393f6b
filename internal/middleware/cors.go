package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// defaultAllowHeaders is advertised on preflights that carry no
// Access-Control-Request-Headers of their own. "authorize" is the legacy
// header name older client SDKs send their credential in.
const defaultAllowHeaders = "Content-Type, authorize"

// preflightMaxAge is how long browsers may cache a preflight response, in
// seconds.
const preflightMaxAge = "3000"

// CORS returns middleware implementing the gateway's cross-origin contract.
// The data API is consumed from arbitrary browser apps, so unlike a
// whitelist-based setup the gateway reflects whatever Origin the request
// carries (with credentials allowed) and falls back to a wildcard for
// origin-less requests. Preflight OPTIONS requests are answered directly
// with a 200 "ok" and never reach the router.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			origin := req.Header.Get("Origin")
			if origin != "" && origin != "null" {
				res.Header().Set("Access-Control-Allow-Origin", origin)
				res.Header().Set("Access-Control-Allow-Credentials", "true")
				res.Header().Set("Vary", "Origin")
			} else {
				res.Header().Set("Access-Control-Allow-Origin", "*")
			}

			res.Header().Set("Access-Control-Allow-Methods", "GET,PUT,POST,DELETE")

			allowHeaders := defaultAllowHeaders
			if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
				allowHeaders = requested
			}
			res.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			res.Header().Set("Access-Control-Max-Age", preflightMaxAge)

			if req.Method == http.MethodOptions {
				return c.String(http.StatusOK, "ok")
			}

			return next(c)
		}
	}
}
