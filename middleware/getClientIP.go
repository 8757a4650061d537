package middleware

import (
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// clientIP keys rate limits. Forwarding headers only count when they carry a parseable address.
func clientIP(c *gin.Context) string {
	for _, h := range []string{"X-Forwarded-For", "X-Real-IP"} {
		first, _, _ := strings.Cut(c.GetHeader(h), ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if ap, err := netip.ParseAddrPort(c.Request.RemoteAddr); err == nil {
		return ap.Addr().String()
	}
	return c.Request.RemoteAddr
}
