package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/app"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/metrics"
	"github.com/realaloky/Fast-chat-app/internal/middleware"
	"github.com/realaloky/Fast-chat-app/internal/presence"
)

// PresenceReader reports whether a user is online.
type PresenceReader interface {
	Get(ctx context.Context, userID string) (presence.Presence, error)
}

type Deps struct {
	App      *app.App
	Tokens   middleware.TokenValidator
	Presence PresenceReader
	Metrics  *metrics.Metrics
	Limiter  *middleware.IPRateLimiter
	Log      *zap.Logger
	// BodyLimit caps request bodies in bytes; uploads need room.
	BodyLimit int
}

func NewServer(d Deps) *fiber.App {
	log := logger.OrNop(d.Log)
	bodyLimit := d.BodyLimit
	if bodyLimit == 0 {
		bodyLimit = 55 * 1024 * 1024
	}
	f := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return JSONError(c, code, err.Error())
		},
	})

	var rec middleware.RequestRecorder
	if d.Metrics != nil {
		rec = d.Metrics
	}
	f.Use(recover.New())
	f.Use(cors.New())
	f.Use(middleware.AccessLog(log, rec))
	if d.Limiter != nil {
		f.Use(d.Limiter.Handler())
	}

	h := &handlers{app: d.App, presence: d.Presence, log: log, now: time.Now}

	f.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	if d.Metrics != nil {
		f.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	f.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		uid, err := d.Tokens.Validate(c.Query("token"))
		if err != nil {
			return JSONError(c, fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(middleware.UserIDKey, uid)
		return c.Next()
	})
	f.Get("/ws", websocket.New(h.stream))

	v1 := f.Group("/v1")
	v1.Post("/auth/signup", h.signup)
	v1.Post("/auth/login", h.login)

	authed := v1.Group("", middleware.RequireAuth(d.Tokens))
	authed.Post("/auth/logout", h.logout)
	authed.Get("/me", h.me)
	authed.Patch("/me", h.updateMe)
	authed.Post("/me/avatar", h.uploadAvatar)
	authed.Get("/users/search", h.searchUsers)
	authed.Get("/users/:id/presence", h.userPresence)
	authed.Put("/target", h.selectTarget)
	authed.Delete("/target", h.clearTarget)
	authed.Get("/conversation", h.conversation)
	authed.Delete("/conversation", h.clearConversation)
	authed.Get("/chats", h.chats)
	authed.Post("/messages", h.sendMessage)
	authed.Post("/messages/media", h.sendMedia)
	authed.Patch("/messages/:id", h.editMessage)
	authed.Delete("/messages/:id", h.deleteMessage)
	authed.Post("/messages/:id/reactions", h.react)

	return f
}
