// Package dataservice declares the backend the chat client is built on: user and message
// records, a live change feed over messages and object storage with public URLs.
package dataservice

import (
	"context"
	"errors"
	"time"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Users interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// GetUsers returns the users whose id is in ids. Unknown ids are skipped.
	GetUsers(ctx context.Context, ids []string) ([]*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByCode(ctx context.Context, code string) (*domain.User, error)
	// SearchUsers matches query as a case-insensitive substring of the username or an
	// exact user code, excluding excludeID.
	SearchUsers(ctx context.Context, query, excludeID string, limit int64) ([]*domain.User, error)
	// CreateUser returns ErrConflict when the username or user code is taken.
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
}

type Messages interface {
	// ListForUser returns every message sent or received by userID, oldest first.
	ListForUser(ctx context.Context, userID string) ([]*domain.Message, error)
	// InsertMessage stores m under a service-assigned id and timestamp and returns the
	// confirmed record.
	InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	EditMessage(ctx context.Context, id, content string, at time.Time) (*domain.Message, error)
	SetReactions(ctx context.Context, id string, reactions []domain.Reaction) (*domain.Message, error)
	SoftDelete(ctx context.Context, id, userID string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	// DeleteConversation removes every message between a and b.
	DeleteConversation(ctx context.Context, a, b string) (int64, error)
}

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one change notification from the live feed. Record is nil for deletes.
type Event struct {
	Type   EventType       `json:"type"`
	ID     string          `json:"id"`
	Record *domain.Message `json:"record,omitempty"`
}

type Subscription interface {
	Unsubscribe() error
}

type Feed interface {
	// Subscribe delivers events to fn until the subscription is closed or ctx ends.
	Subscribe(ctx context.Context, fn func(Event)) (Subscription, error)
}

// Publisher pushes change events onto a feed transport for stores that do not stream
// changes themselves.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Objects interface {
	// Upload stores data under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Service bundles the collaborators of one application session.
type Service struct {
	Users    Users
	Messages Messages
	Feed     Feed
	Objects  Objects
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Unsubscribe() error { return f() }
