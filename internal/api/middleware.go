package api

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ValidateContentType middleware ensures that requests with a body have the correct Content-Type.
func ValidateContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		if method == echo.POST || method == echo.PUT || method == echo.PATCH {
			contentType := c.Request().Header.Get("Content-Type")

			if c.Request().ContentLength == 0 {
				return next(c)
			}

			if strings.HasPrefix(contentType, "multipart/form-data") {
				return next(c)
			}

			if !strings.HasPrefix(contentType, "application/json") {
				return BadRequestError(
					"Invalid Content-Type",
					"Content-Type must be 'application/json'. Got: "+contentType,
				)
			}
		}

		return next(c)
	}
}

// ValidateAcceptHeader middleware ensures that clients can accept JSON responses.
func ValidateAcceptHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get("Accept")

		if accept == "" {
			return next(c)
		}

		if !strings.Contains(accept, "application/json") &&
			!strings.Contains(accept, "text/plain") &&
			!strings.Contains(accept, "*/*") &&
			!strings.Contains(accept, "application/*") {
			return BadRequestError(
				"Invalid Accept header",
				"API returns JSON or, with Accept: text/plain, the plaintext event stream. Got: "+accept,
			)
		}

		return next(c)
	}
}

// ValidateIDFormat middleware validates that deployment/service identifiers
// look like identifiers, not arbitrary strings.
func ValidateIDFormat(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		if id == "" {
			return next(c)
		}

		if strings.ContainsAny(id, " \t\n/") {
			return BadRequestError("Invalid ID format", "ID cannot contain whitespace or '/'")
		}

		if len(id) > 253 {
			return BadRequestError("Invalid ID format", "ID must not exceed 253 characters")
		}

		return next(c)
	}
}

// SecurityHeaders middleware adds security headers to responses.
func SecurityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		c.Response().Header().Set("X-Frame-Options", "DENY")
		c.Response().Header().Set("X-XSS-Protection", "1; mode=block")
		c.Response().Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		return next(c)
	}
}
