package domain

import "time"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

type Reaction struct {
	UserID   string `bson:"user_id" json:"user_id"`
	Emoji    string `bson:"emoji" json:"emoji"`
	Username string `bson:"username,omitempty" json:"username,omitempty"`
}

type Message struct {
	ID         string      `bson:"_id" json:"id"`
	SenderID   string      `bson:"sender_id" json:"sender_id"`
	ReceiverID string      `bson:"receiver_id" json:"receiver_id"`
	Content    string      `bson:"content" json:"content"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
	Reactions  []Reaction  `bson:"reactions" json:"reactions"`
	ReplyToID  string      `bson:"reply_to_id,omitempty" json:"reply_to_id,omitempty"`
	EditedAt   *time.Time  `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	DeletedFor []string    `bson:"deleted_for" json:"deleted_for"`
	Kind       MessageKind `bson:"message_type" json:"message_type"`
	MediaURL   string      `bson:"media_url,omitempty" json:"media_url,omitempty"`
	MediaName  string      `bson:"media_name,omitempty" json:"media_name,omitempty"`
	MediaSize  int64       `bson:"media_size,omitempty" json:"media_size,omitempty"`
}

// Involves reports whether userID is the sender or the receiver.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// InConversation reports whether {sender, receiver} == {a, b}.
func (m *Message) InConversation(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Peer returns the other party of the message from self's point of view.
func (m *Message) Peer(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m *Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// Normalize fills nil collections and the default kind.
func (m *Message) Normalize() {
	if m.Reactions == nil {
		m.Reactions = []Reaction{}
	}
	if m.DeletedFor == nil {
		m.DeletedFor = []string{}
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
}

// Clone returns a deep copy so callers may mutate it without touching shared state.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Reactions = append([]Reaction(nil), m.Reactions...)
	c.DeletedFor = append([]string(nil), m.DeletedFor...)
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	return &c
}
