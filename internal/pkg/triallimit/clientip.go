package triallimit

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP resolves the caller address from proxy headers: CF-Connecting-IP,
// then X-Real-IP, then the first X-Forwarded-For entry. It returns "" when
// none is present; callers must treat that as an unknown identity.
func ClientIP(c *fiber.Ctx) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := strings.TrimSpace(c.Get(header)); ip != "" {
			return ip
		}
	}

	xff := c.Get(fiber.HeaderXForwardedFor)
	if i := strings.IndexByte(xff, ','); i >= 0 {
		xff = xff[:i]
	}
	return strings.TrimSpace(xff)
}
