package v1

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	apierrors "github.com/hrygo/meditation/server/internal/errors"
)

const (
	tokenIssuer  = "meditation"
	adminSubject = "admin"
)

// GenerateAdminToken signs an HS256 admin token valid for ttl.
func GenerateAdminToken(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("admin secret is not configured")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return token, nil
}

// ParseAdminToken verifies an admin token.
func ParseAdminToken(secret, raw string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
	)
	return err
}

// requireAdmin guards lifecycle routes. Without a configured secret they are open.
func (s *APIV1Service) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := s.Profile.AdminSecret
		if secret == "" {
			return next(c)
		}

		raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			return writeError(c, apierrors.Unauthorized("bearer token required"))
		}
		if err := ParseAdminToken(secret, raw); err != nil {
			return writeError(c, apierrors.Unauthorized("invalid token"))
		}
		return next(c)
	}
}
