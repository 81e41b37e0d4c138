package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-code-review/internal/utils"
)

const sessionTokenIssuer = "gema-code-review"

// IssueSessionToken signs a session token whose subject is the session identifier.
func IssueSessionToken(secret, sessionID string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, fmt.Errorf("session secret is required")
	}

	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    sessionTokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SessionProtected returns a middleware that validates session tokens and stores the
// session identifier under the "session_id" local. Websocket upgrades may pass the token
// as the "token" query parameter since browsers cannot set headers on them.
func SessionProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		sessionID, err := parseSessionToken(secret, tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid session token")
		}

		c.Locals("session_id", sessionID)
		return c.Next()
	}
}

// SessionIDFromContext returns the session identifier bound by SessionProtected.
func SessionIDFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("session_id").(string); ok {
		return v
	}
	return ""
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		if query := strings.TrimSpace(c.Query("token")); query != "" {
			return query, nil
		}
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", fmt.Errorf("invalid token")
	}

	return tokenString, nil
}

func parseSessionToken(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(sessionTokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	sessionID := strings.TrimSpace(claims.Subject)
	if sessionID == "" {
		return "", fmt.Errorf("missing subject")
	}

	return sessionID, nil
}
