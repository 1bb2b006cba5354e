package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInConversation(t *testing.T) {
	m := &Message{SenderID: "u1", ReceiverID: "u2"}
	assert.True(t, m.InConversation("u1", "u2"))
	assert.True(t, m.InConversation("u2", "u1"))
	assert.False(t, m.InConversation("u1", "u3"))
	assert.Equal(t, "u2", m.Peer("u1"))
	assert.Equal(t, "u1", m.Peer("u2"))
}

func TestCloneIsDeep(t *testing.T) {
	m := &Message{ID: "m1", Reactions: []Reaction{{UserID: "u1", Emoji: "👍"}}, DeletedFor: []string{"u2"}}
	c := m.Clone()
	c.Reactions[0].Emoji = "🔥"
	c.DeletedFor[0] = "u3"
	assert.Equal(t, "👍", m.Reactions[0].Emoji)
	assert.Equal(t, "u2", m.DeletedFor[0])
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "?", Initials(""))
	assert.Equal(t, "A", Initials("alice"))
	assert.Equal(t, "AL", Initials("ada  king lovelace"))
}

func TestDisplayName(t *testing.T) {
	u := &User{Username: "bob"}
	assert.Equal(t, "bob", u.DisplayName())
	u.FullName = "Bob Builder"
	assert.Equal(t, "Bob Builder", u.DisplayName())
}
