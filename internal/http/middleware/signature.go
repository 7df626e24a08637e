package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// SignatureAuth validates the X-Signature header on externally triggered
// endpoints. The header must carry the hex HMAC-SHA256 of the raw request
// body under the shared signing key.
func SignatureAuth(signingKey string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if signingKey == "" {
			logger.Warn("Signing key not configured, rejecting signed request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Signing key not configured",
			})
		}

		provided := c.Get("X-Signature")
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing X-Signature header",
			})
		}

		mac := hmac.New(sha256.New, []byte(signingKey))
		mac.Write(c.Body())
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(provided), []byte(expected)) {
			logger.Warn("Rejected request with invalid signature")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}
