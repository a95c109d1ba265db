package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Identity is the authenticated caller. The service never issues a call
// store query without one: an absent identity is "not yet known", not
// "anonymous".
type Identity struct {
	UserID string
	Name   string
	Email  string
}

const identityContextKey = "identity"

// IdentityClaims are the JWT claims the identity provider issues.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// IdentityMiddleware authenticates requests with a bearer HS256 token from
// the identity provider and stores the resulting Identity on the context.
// Requests without a valid identity are rejected with 401.
func IdentityMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &IdentityClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			c.Set(identityContextKey, Identity{
				UserID: claims.Subject,
				Name:   claims.Name,
				Email:  claims.Email,
			})
			return next(c)
		}
	}
}

// DevIdentityMiddleware is a permissive middleware for development that
// gives unauthenticated requests a fixed identity.
func DevIdentityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(identityContextKey).(Identity); !ok {
				c.Set(identityContextKey, Identity{
					UserID: "dev-user",
					Name:   "Dev User",
					Email:  "dev@clinic.example",
				})
			}
			return next(c)
		}
	}
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityContextKey).(Identity)
	return id, ok && id.UserID != ""
}

// IssueToken mints an identity token. Used by tests and dev tooling.
func IssueToken(secret []byte, userID, name, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  name,
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}
