package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetClientIP determines the client address behind Cloudflare or a reverse
// proxy. It returns the IPv4 and IPv6 address where known.
func GetClientIP(c *fiber.Ctx) (string, string) {
	var candidates []string
	if cf := strings.TrimSpace(c.Get("CF-Connecting-IP")); cf != "" {
		candidates = append(candidates, cf)
	}
	for _, ip := range strings.Split(c.Get(fiber.HeaderXForwardedFor), ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			candidates = append(candidates, ip)
		}
	}
	candidates = append(candidates, c.IP())
	if real := strings.TrimSpace(c.Get("X-Real-IP")); real != "" {
		candidates = append(candidates, real)
	}

	ipv4, ipv6 := "", ""
	for _, ip := range candidates {
		// IPv4-mapped IPv6 (::ffff:192.168.1.1)
		if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
			ip = strings.TrimPrefix(ip, "::ffff:")
		}
		if strings.Contains(ip, ":") {
			if ipv6 == "" {
				ipv6 = ip
			}
		} else if ipv4 == "" {
			ipv4 = ip
		}
		if ipv4 != "" && ipv6 != "" {
			break
		}
	}
	return ipv4, ipv6
}
