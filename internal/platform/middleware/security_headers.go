package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig controls the response hardening headers.
type SecurityConfig struct {
	// HSTS is only sent when the service is reached over TLS, i.e. in
	// production behind the load balancer.
	HSTS bool
	// EmbeddablePrefixes may be loaded cross-origin by the web client, such
	// as uploaded doctor photos.
	EmbeddablePrefixes []string
}

// SecurityHeaders hardens every response. Patient and appointment data is
// marked no-store unless the handler chose its own Cache-Control.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			h := res.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			policy := "same-origin"
			if hasAnyPrefix(c.Request().URL.Path, cfg.EmbeddablePrefixes) {
				policy = "cross-origin"
			}
			h.Set("Cross-Origin-Resource-Policy", policy)

			res.Before(func() {
				if h.Get("Cache-Control") == "" {
					h.Set("Cache-Control", "no-store")
				}
			})
			return next(c)
		}
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
