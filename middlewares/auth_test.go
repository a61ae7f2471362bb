package middlewares

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// loadJWTSecret caches via sync.Once, so the secret must be in place
	// before any test touches the auth middleware.
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func authApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/whoami", IsAuthenticatedHeader(), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(string)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	return app
}

func TestIsAuthenticatedHeader_ValidToken(t *testing.T) {
	app := authApp()

	token, err := GenerateJWT("user-42")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIsAuthenticatedHeader_MissingHeader(t *testing.T) {
	app := authApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIsAuthenticatedHeader_GarbageToken(t *testing.T) {
	app := authApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
