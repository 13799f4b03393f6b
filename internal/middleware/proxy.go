package middleware

import (
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
)

// TrustedProxies configures which upstream proxy IP ranges Echo trusts when
// extracting the real client IP from X-Forwarded-For. Without this,
// c.RealIP() would return the proxy's address, breaking rate limiting and
// request logging behind a load balancer.
func TrustedProxies(e *echo.Echo, cidrs []string) {
	var ranges []echo.TrustOption

	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("skipping invalid trusted proxy range", slog.String("cidr", cidr))
			continue
		}
		ranges = append(ranges, echo.TrustIPRange(network))
	}

	e.IPExtractor = echo.ExtractIPFromXFFHeader(ranges...)
}
