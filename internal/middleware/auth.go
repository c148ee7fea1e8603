package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	adminRole   = "admin"
	tokenIssuer = "ocus-storefront"

	// AdminSubjectKey holds the token subject on the echo context.
	AdminSubjectKey = "admin_subject"
)

var ErrAdminDisabled = errors.New("admin access is not configured")

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 admin token valid for ttl.
func IssueAdminToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrAdminDisabled
	}

	expiresAt := now.Add(ttl)
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// AdminAuth requires a valid admin bearer token. With no secret configured
// every request is rejected.
func AdminAuth(secret []byte, clk clock.Clock) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(secret) == 0 {
				return echo.NewHTTPError(http.StatusServiceUnavailable, ErrAdminDisabled.Error())
			}

			raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithIssuer(tokenIssuer),
				jwt.WithExpirationRequired(),
				jwt.WithTimeFunc(clk.Now),
			)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Role != adminRole {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}

			c.Set(AdminSubjectKey, claims.Subject)
			return next(c)
		}
	}
}
