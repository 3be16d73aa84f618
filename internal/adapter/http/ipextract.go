package http

import (
	"net"

	"github.com/labstack/echo/v4"
)

// IPExtractor decides which address c.RealIP reports. With no trusted
// proxies the peer address is used and forwarding headers are ignored.
// Otherwise X-Forwarded-For is read only when it was appended by one of
// the trusted ranges.
func IPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
