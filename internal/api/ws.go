package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/middleware"
)

const (
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second
	writeDeadline = 10 * time.Second
)

type frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// stream pushes the active conversation and recent chats after every state change until
// the client disconnects or the session ends.
func (h *handlers) stream(conn *websocket.Conn) {
	uid, _ := conn.Locals(middleware.UserIDKey).(string)
	mgr, err := h.app.Manager(uid)
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Data: err.Error()})
		_ = conn.Close()
		return
	}

	// keep only the newest snapshot when the client is slow
	updates := make(chan chat.State, 1)
	push := func(st chat.State) {
		select {
		case updates <- st:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- st:
			default:
			}
		}
	}
	off := mgr.OnChange(push)
	defer off()
	push(mgr.State())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-closed:
			return
		case st := <-updates:
			if _, err := h.app.Manager(uid); err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"), time.Now().Add(time.Second))
				return
			}
			now := h.now()
			b, err := json.Marshal(frame{Type: "state", Data: map[string]interface{}{
				"conversation": toConversation(st, now),
				"chats":        toPeers(st, now),
			}})
			if err != nil {
				h.log.Warn("encode ws frame", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if cur, err := h.app.Manager(uid); err != nil || cur != mgr {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
