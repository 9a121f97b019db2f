package server

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"

	"ascendfit/internal/core"
)

// AuthMiddleware validates the service key when one is configured. The key is
// read from "Authorization: Bearer <key>" or, as browser clients send it, the
// apikey header. Paths in skipPaths and CORS preflights pass through.
func AuthMiddleware(masterKey string, skipPaths []string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if masterKey == "" {
				return next(c)
			}
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}

			token := c.Request().Header.Get("apikey")
			if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
				const prefix = "Bearer "
				if !strings.HasPrefix(authHeader, prefix) {
					return handleError(c, core.NewAuthenticationError("invalid authorization header format, expected 'Bearer <token>'"))
				}
				token = strings.TrimPrefix(authHeader, prefix)
			}
			if token == "" {
				return handleError(c, core.NewAuthenticationError("missing authorization header"))
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(masterKey)) != 1 {
				return handleError(c, core.NewAuthenticationError("invalid service key"))
			}

			return next(c)
		}
	}
}
