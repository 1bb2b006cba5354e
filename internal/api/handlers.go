package api

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/app"
	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/middleware"
	"github.com/realaloky/Fast-chat-app/internal/presence"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

const requestTimeout = 10 * time.Second

type handlers struct {
	app      *app.App
	presence PresenceReader
	log      *zap.Logger
	now      func() time.Time
}

func (h *handlers) manager(c *fiber.Ctx) (*chat.Manager, error) {
	return h.app.Manager(middleware.UserID(c))
}

func reqCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *handlers) signup(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.app.Signup(ctx, req.Username, req.Password, req.FullName)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, sess)
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.app.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, sess)
}

func (h *handlers) logout(c *fiber.Ctx) error {
	if _, err := h.manager(c); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.app.Logout(ctx); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) me(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, mgr.State().Self)
}

func (h *handlers) updateMe(c *fiber.Ctx) error {
	var upd domain.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	// online state is owned by sign in and out
	upd.IsOnline, upd.LastSeen = nil, nil
	if upd.Empty() {
		return JSONError(c, fiber.StatusBadRequest, "nothing to update")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.app.UpdateProfile(ctx, middleware.UserID(c), upd)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, u)
}

func readUpload(c *fiber.Ctx) (name, contentType string, data []byte, err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", "", nil, chat.ErrEmptyAttachment
	}
	if err := utils.ValidateFileHeader(fh); err != nil {
		return "", "", nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", nil, err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, err
	}
	return fh.Filename, fh.Header.Get("Content-Type"), data, nil
}

func (h *handlers) uploadAvatar(c *fiber.Ctx) error {
	_, _, data, err := readUpload(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.app.UploadAvatar(ctx, middleware.UserID(c), data)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, u)
}

func (h *handlers) searchUsers(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := mgr.SearchUsers(ctx, c.Query("q"))
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, users)
}

func (h *handlers) userPresence(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	id := c.Params("id")
	ctx, cancel := reqCtx(c)
	defer cancel()
	if h.presence != nil {
		p, err := h.presence.Get(ctx, id)
		if err == nil {
			return JSONSuccess(c, fiber.StatusOK, p)
		}
		h.log.Warn("presence lookup failed", zap.String("peer_id", id), zap.Error(err))
	}
	// fall back to the flag kept on the user record
	u, err := mgr.LookupUser(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	p := presence.Presence{UserID: u.ID, Status: presence.StatusOffline, LastSeen: u.LastSeen.Unix()}
	if u.IsOnline {
		p.Status = presence.StatusOnline
	}
	return JSONSuccess(c, fiber.StatusOK, p)
}

func (h *handlers) selectTarget(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Code   string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	var u *domain.User
	switch {
	case req.Code != "":
		u, err = mgr.SelectByCode(ctx, strings.TrimPrefix(strings.TrimSpace(req.Code), chat.AddressSigil))
	case req.UserID != "":
		u, err = mgr.SelectTarget(ctx, req.UserID)
	default:
		return JSONError(c, fiber.StatusBadRequest, "user_id or code required")
	}
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, u)
}

func (h *handlers) clearTarget(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	mgr.ClearTarget()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) conversation(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, toConversation(mgr.State(), h.now()))
}

func (h *handlers) clearConversation(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := mgr.ClearConversation(ctx)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": n})
}

func (h *handlers) chats(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, toPeers(mgr.State(), h.now()))
}

func (h *handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Input     string `json:"input"`
		Content   string `json:"content"`
		ReplyToID string `json:"reply_to_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	var opts []chat.SendOption
	if req.ReplyToID != "" {
		opts = append(opts, chat.WithReplyTo(req.ReplyToID))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if req.Input != "" {
		res, err := mgr.Submit(ctx, req.Input, opts...)
		if err != nil {
			return fail(c, err)
		}
		status := fiber.StatusCreated
		if res.Message == nil {
			status = fiber.StatusOK
		}
		return JSONSuccess(c, status, fiber.Map{"target": res.Target, "message": res.Message})
	}
	msg, err := mgr.Send(ctx, req.Content, opts...)
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, fiber.Map{"message": msg})
}

func (h *handlers) sendMedia(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	name, ct, data, err := readUpload(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := mgr.SendMedia(ctx, chat.Attachment{Name: name, ContentType: ct, Data: data}, c.FormValue("caption"))
	if err != nil {
		return fail(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, fiber.Map{"message": msg})
}

func (h *handlers) editMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := mgr.Edit(ctx, c.Params("id"), req.Content); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) deleteMessage(c *fiber.Ctx) error {
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id := c.Params("id")
	switch c.Query("type", "user") {
	case "user":
		err = mgr.DeleteForMe(ctx, id)
	case "all":
		err = mgr.DeleteForEveryone(ctx, id)
	default:
		return JSONError(c, fiber.StatusBadRequest, "type must be user or all")
	}
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) react(c *fiber.Ctx) error {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	mgr, err := h.manager(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := mgr.React(ctx, c.Params("id"), req.Emoji); err != nil {
		return fail(c, err)
	}
	e, ok := mgr.State().Lookup(c.Params("id"))
	if !ok {
		return fail(c, chat.ErrMessageNotFound)
	}
	return JSONSuccess(c, fiber.StatusOK, e.Message)
}
