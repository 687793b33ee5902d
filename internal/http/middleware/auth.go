package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/clickhook/internal/http/util"
	"go.uber.org/zap"
)

const adminSubjectLocal = "admin_subject"

// AdminAuth requires an "Authorization: Bearer <token>" header signed by signer.
func AdminAuth(signer *util.TokenSigner, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		subject, err := signer.Validate(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, util.ErrMissingSecret) {
				logger.Error("admin API called but no admin secret is configured")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "admin API is not configured",
				})
			}
			logger.Debug("rejected admin token", zap.Error(err), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": util.ErrInvalidToken.Error(),
			})
		}

		c.Locals(adminSubjectLocal, subject)
		return c.Next()
	}
}

// AdminSubject returns the subject of the token accepted by AdminAuth.
func AdminSubject(c *fiber.Ctx) string {
	s, _ := c.Locals(adminSubjectLocal).(string)
	return s
}
