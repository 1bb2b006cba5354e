package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/realaloky/Fast-chat-app/internal/app"
	"github.com/realaloky/Fast-chat-app/internal/auth"
	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/session"
	"github.com/realaloky/Fast-chat-app/internal/storage"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func JSONError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{chat.ErrEmptyMessage, fiber.StatusBadRequest},
	{chat.ErrNoTarget, fiber.StatusBadRequest},
	{chat.ErrInvalidAddress, fiber.StatusBadRequest},
	{chat.ErrSelfTarget, fiber.StatusBadRequest},
	{chat.ErrInvalidReaction, fiber.StatusBadRequest},
	{chat.ErrEmptyAttachment, fiber.StatusBadRequest},
	{auth.ErrInvalidUsername, fiber.StatusBadRequest},
	{auth.ErrWeakPassword, fiber.StatusBadRequest},
	{utils.ErrFileSize, fiber.StatusBadRequest},
	{utils.ErrContentType, fiber.StatusBadRequest},
	{storage.ErrNotImage, fiber.StatusBadRequest},
	{chat.ErrUserNotFound, fiber.StatusNotFound},
	{chat.ErrMessageNotFound, fiber.StatusNotFound},
	{dataservice.ErrNotFound, fiber.StatusNotFound},
	{chat.ErrNotOwner, fiber.StatusForbidden},
	{chat.ErrPendingMessage, fiber.StatusConflict},
	{auth.ErrUsernameTaken, fiber.StatusConflict},
	{dataservice.ErrConflict, fiber.StatusConflict},
	{auth.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{auth.ErrInvalidToken, fiber.StatusUnauthorized},
	{app.ErrNotSignedIn, fiber.StatusUnauthorized},
	{app.ErrWrongSession, fiber.StatusUnauthorized},
	{session.ErrNoSession, fiber.StatusUnauthorized},
	{chat.ErrNoObjectStorage, fiber.StatusNotImplemented},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return JSONError(c, statusFor(err), err.Error())
}
