package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-code-review/internal/middleware"
)

const testSecret = "test-secret"

func sessionApp() *fiber.App {
	app := fiber.New()
	app.Get("/", middleware.SessionProtected(testSecret), func(c *fiber.Ctx) error {
		return c.SendString(middleware.SessionIDFromContext(c))
	})
	return app
}

func perform(t *testing.T, app *fiber.App, target, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSessionProtectedAcceptsBearerToken(t *testing.T) {
	token, expiresAt, err := middleware.IssueSessionToken(testSecret, "session-42", time.Hour, time.Now())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	resp := perform(t, sessionApp(), "/", "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	require.Equal(t, "session-42", string(body[:n]))
}

func TestSessionProtectedAcceptsQueryToken(t *testing.T) {
	token, _, err := middleware.IssueSessionToken(testSecret, "session-42", time.Hour, time.Now())
	require.NoError(t, err)

	resp := perform(t, sessionApp(), "/?token="+token, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSessionProtectedRejections(t *testing.T) {
	expired, _, err := middleware.IssueSessionToken(testSecret, "session-42", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	foreign, _, err := middleware.IssueSessionToken("other-secret", "session-42", time.Hour, time.Now())
	require.NoError(t, err)

	cases := []struct {
		name          string
		authorization string
	}{
		{name: "missing", authorization: ""},
		{name: "not_bearer", authorization: "Basic abc"},
		{name: "garbage", authorization: "Bearer not-a-token"},
		{name: "expired", authorization: "Bearer " + expired},
		{name: "wrong_secret", authorization: "Bearer " + foreign},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := perform(t, sessionApp(), "/", tc.authorization)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestIssueSessionTokenRequiresSecret(t *testing.T) {
	_, _, err := middleware.IssueSessionToken("", "session", time.Hour, time.Now())
	require.Error(t, err)
}

func TestRateLimitPerSession(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("session_id", c.Get("X-Session"))
		return c.Next()
	})
	app.Post("/", middleware.RateLimit("submit", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Session", session)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusNoContent, send("a"))
	require.Equal(t, fiber.StatusTooManyRequests, send("a"))
	require.Equal(t, fiber.StatusNoContent, send("b"))
}
