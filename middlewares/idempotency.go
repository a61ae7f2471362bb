package middlewares

import (
	"errors"
	"strings"

	"newsletter-backend/database"
	"newsletter-backend/idempotency"
	"newsletter-backend/models"

	"github.com/gofiber/fiber/v2"
)

// Idempotency guards mutating HTTP methods with the idempotency core. The
// downstream handler is the effect: it runs exactly once per (user, key), and
// retries get the saved response replayed byte for byte, headers included.
// Requests without an Idempotency-Key pass through untouched.
//
// Order: run AFTER IsAuthenticatedHeader() (the key is scoped to the user) and
// BEFORE RequestTx() (idempotency rows must not be tied to the handler TX).
func Idempotency(cfg idempotency.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		raw := strings.TrimSpace(c.Get("Idempotency-Key"))
		if raw == "" {
			raw = strings.TrimSpace(c.FormValue("idempotency_key"))
		}
		if raw == "" {
			return c.Next()
		}
		key, err := idempotency.ParseKey(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		userID, _ := c.Locals("userID").(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		proc := idempotency.NewProcessor(database.DB, cfg)

		var handlerErr error
		resp, replayed, err := proc.Execute(c.UserContext(), userID, key, func() (idempotency.Response, error) {
			if handlerErr = c.Next(); handlerErr != nil {
				// Failed effects are not persisted; the claim is released so
				// the client can retry with the same key.
				return idempotency.Response{}, handlerErr
			}
			return captureResponse(c), nil
		})
		if err != nil {
			if errors.Is(err, idempotency.ErrInFlight) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
			}
			return err
		}

		if replayed {
			writeResponse(c, resp)
		}
		return nil
	}
}

// captureResponse snapshots the response the handler just produced, preserving
// header order and duplicates.
func captureResponse(c *fiber.Ctx) idempotency.Response {
	var headers []models.HeaderPair
	c.Response().Header.VisitAll(func(name, value []byte) {
		pair := models.HeaderPair{
			Name:  string(name),
			Value: make([]byte, len(value)),
		}
		copy(pair.Value, value)
		headers = append(headers, pair)
	})

	src := c.Response().Body()
	body := make([]byte, len(src))
	copy(body, src)

	return idempotency.Response{
		StatusCode: c.Response().StatusCode(),
		Headers:    headers,
		Body:       body,
	}
}

// writeResponse replays a saved response onto the Fiber context.
func writeResponse(c *fiber.Ctx, resp idempotency.Response) {
	c.Response().Reset()
	c.Status(resp.StatusCode)
	for _, h := range resp.Headers {
		switch {
		case strings.EqualFold(h.Name, fiber.HeaderContentType):
			c.Response().Header.SetContentTypeBytes(h.Value)
		case strings.EqualFold(h.Name, fiber.HeaderContentLength):
			// Recomputed from the body below.
		default:
			c.Response().Header.AddBytesV(h.Name, h.Value)
		}
	}
	c.Response().SetBodyRaw(resp.Body)
}
