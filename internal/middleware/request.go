package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const UserIDKey = "user_id"

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequireAuth accepts "Authorization: Bearer <token>" and stores the user id in locals.
func RequireAuth(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get(fiber.HeaderAuthorization)
		if hdr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "missing auth"})
		}
		const pref = "Bearer "
		if !strings.HasPrefix(hdr, pref) || len(hdr) == len(pref) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "invalid auth"})
		}
		sub, err := v.Validate(hdr[len(pref):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": err.Error()})
		}
		c.Locals(UserIDKey, sub)
		return c.Next()
	}
}

// UserID returns the id stored by RequireAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

// RequestRecorder counts finished requests.
type RequestRecorder interface {
	Request(method string, status int)
}

// AccessLog logs every request with zap and reports it to rec when set.
func AccessLog(log *zap.Logger, rec RequestRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		if rec != nil {
			rec.Request(c.Method(), status)
		}
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
		)
		return err
	}
}
