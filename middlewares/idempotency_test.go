package middlewares

import (
	"io"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"newsletter-backend/database"
	"newsletter-backend/idempotency"
	"newsletter-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Set TEST_DATABASE_URL to run these against a real Postgres.
func setupIdempotencyDB(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.IdempotencyRecord{}))
	database.DB = db

	owner := uuid.NewString()
	t.Cleanup(func() {
		db.Where("user_id = ?", owner).Delete(&models.IdempotencyRecord{})
	})
	return owner
}

func idempotencyApp(owner string, calls *int32) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", owner)
		return c.Next()
	})
	app.Use(Idempotency(idempotency.DefaultConfig()))
	app.Post("/newsletters", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(calls, 1)
		c.Set("X-Issue", strconv.Itoa(int(n)))
		c.Append("X-Multi", "first")
		c.Append("X-Multi", "second")
		return c.JSON(fiber.Map{"message": "The newsletter has been published!", "run": n})
	})
	return app
}

func TestIdempotencyMiddleware_ReplaysResponseVerbatim(t *testing.T) {
	owner := setupIdempotencyDB(t)
	var calls int32
	app := idempotencyApp(owner, &calls)

	send := func() (int, string, string, string) {
		req := httptest.NewRequest("POST", "/newsletters", nil)
		req.Header.Set("Idempotency-Key", "issue-1")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body), resp.Header.Get("X-Issue"), resp.Header.Get("X-Multi")
	}

	status1, body1, issue1, multi1 := send()
	status2, body2, issue2, multi2 := send()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "handler runs once")
	assert.Equal(t, status1, status2)
	assert.Equal(t, body1, body2, "replayed body is byte-identical")
	assert.Equal(t, issue1, issue2, "custom headers are replayed")
	assert.Equal(t, multi1, multi2)
	assert.Equal(t, fiber.StatusOK, status1)
}

func TestIdempotencyMiddleware_DistinctKeysRunSeparately(t *testing.T) {
	owner := setupIdempotencyDB(t)
	var calls int32
	app := idempotencyApp(owner, &calls)

	for _, key := range []string{"issue-a", "issue-b"} {
		req := httptest.NewRequest("POST", "/newsletters", nil)
		req.Header.Set("Idempotency-Key", key)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_NoKeyPassesThrough(t *testing.T) {
	owner := setupIdempotencyDB(t)
	var calls int32
	app := idempotencyApp(owner, &calls)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/newsletters", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "keys are opt-in")
}

func TestIdempotencyMiddleware_FailedHandlerIsNotSaved(t *testing.T) {
	owner := setupIdempotencyDB(t)

	var calls int32
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", owner)
		return c.Next()
	})
	app.Use(Idempotency(idempotency.DefaultConfig()))
	app.Post("/newsletters", func(c *fiber.Ctx) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return fiber.NewError(fiber.StatusInternalServerError, "delivery failed")
		}
		return c.JSON(fiber.Map{"message": "ok"})
	})

	send := func() int {
		req := httptest.NewRequest("POST", "/newsletters", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusInternalServerError, send())
	assert.Equal(t, fiber.StatusOK, send(), "failed attempt must not block the retry")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_OverlongKeyRejected(t *testing.T) {
	owner := setupIdempotencyDB(t)
	var calls int32
	app := idempotencyApp(owner, &calls)

	req := httptest.NewRequest("POST", "/newsletters", nil)
	req.Header.Set("Idempotency-Key", strings.Repeat("k", 200))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
