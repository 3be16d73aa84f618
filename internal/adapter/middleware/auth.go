package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	ctxOwnerID    = "owner_id"
	ctxOwnerEmail = "owner_email"
	ctxOwnerName  = "owner_name"
)

var ErrInvalidToken = errors.New("invalid token")

// OwnerClaims is the bearer token of a vault owner. Subject is the owner id.
type OwnerClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueOwnerToken signs an HS256 owner token valid for ttl.
func IssueOwnerToken(secret []byte, ownerID, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OwnerClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseOwnerToken(secret []byte, raw string) (*OwnerClaims, error) {
	claims := new(OwnerClaims)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil })
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// OwnerAuth requires "Authorization: Bearer <token>" and stores the owner
// identity on the echo context.
func OwnerAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			claims, err := parseOwnerToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": ErrInvalidToken.Error()})
			}
			c.Set(ctxOwnerID, claims.Subject)
			c.Set(ctxOwnerEmail, claims.Email)
			c.Set(ctxOwnerName, claims.Name)
			return next(c)
		}
	}
}

func OwnerID(c echo.Context) string    { return ctxString(c, ctxOwnerID) }
func OwnerEmail(c echo.Context) string { return ctxString(c, ctxOwnerEmail) }
func OwnerName(c echo.Context) string  { return ctxString(c, ctxOwnerName) }

func ctxString(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}
