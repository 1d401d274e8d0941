// Package auth implements the controller's ambient security layer: a
// single process-wide bearer token checked on every HTTP edge request, and
// password/key hashing for the plugins that need their own credential
// store (notably gitreceive's push authentication).
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a hashed secret does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

const bearerPrefix = "Bearer "

// KeySource returns the current process auth key. The HTTP edge consults
// it on every request rather than caching the key at startup, so a
// `vesselkey rotate` takes effect without a restart.
type KeySource func() (string, error)

// RequireBearer builds echo middleware that rejects requests whose
// Authorization header doesn't present the current auth key. An empty key
// (no key has ever been generated) disables the check, matching a
// fresh install before `vesselkey generate` has run.
func RequireBearer(keys KeySource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			want, err := keys()
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "auth: "+err.Error())
			}
			if want == "" {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			got := strings.TrimPrefix(header, bearerPrefix)
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			return next(c)
		}
	}
}

// GenerateKey returns a fresh random auth key suitable for vesselkey
// generate/rotate, base64url-encoded like the teacher's API-key helper.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashPassword hashes a password/secret for storage, used by gitreceive to
// store a push credential without keeping it in plaintext.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword checks password against a hash produced by HashPassword.
func ComparePassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}
