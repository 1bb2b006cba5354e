package api

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

type stateFrame struct {
	Type string `json:"type"`
	Data struct {
		Conversation conversationDTO `json:"conversation"`
		Chats        []peerDTO       `json:"chats"`
	} `json:"data"`
}

func (s *testServer) dialStream() *websocket.Conn {
	s.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(s.t, err)
	go func() { _ = s.f.Listener(ln) }()
	s.t.Cleanup(func() { _ = s.f.ShutdownWithTimeout(time.Second) })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?token="+s.token, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) stateFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var fr stateFrame
	require.NoError(t, json.Unmarshal(raw, &fr))
	return fr
}

func TestStreamPushesConversation(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.mem.CreateUser(context.Background(), &domain.User{ID: "bob", Username: "bob", UserCode: "0000000001"}))
	s.signup("ann")
	conn := s.dialStream()

	first := readState(t, conn)
	assert.Equal(t, "state", first.Type)
	assert.Empty(t, first.Data.Conversation.Messages)

	code, env := s.do("POST", "/v1/messages", map[string]string{"input": "@0000000001 hi"})
	require.Equal(t, fiber.StatusCreated, code, env.Message)

	var last stateFrame
	for {
		last = readState(t, conn)
		msgs := last.Data.Conversation.Messages
		assert.LessOrEqual(t, len(msgs), 1, "each frame shows the message once")
		if len(msgs) == 1 && msgs[0].Status == "confirmed" {
			break
		}
	}
	assert.Equal(t, "hi", last.Data.Conversation.Messages[0].Message.Content)
	assert.Equal(t, "bob", last.Data.Conversation.Target.ID)
	require.Len(t, last.Data.Chats, 1)
	assert.Equal(t, "bob", last.Data.Chats[0].User.ID)
}

func TestStreamRejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	s.token = "not-a-token"
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.f.Listener(ln) }()
	t.Cleanup(func() { _ = s.f.ShutdownWithTimeout(time.Second) })

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?token="+s.token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
