// Package presence keeps online state in Redis.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type Presence struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (p Presence) Online() bool { return p.Status == StatusOnline }

// Store keys presence as <prefix>:presence:<user> -> {status,last_seen}. Online entries
// expire after ttl unless refreshed.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *Store) key(userID string) string { return fmt.Sprintf("%s:presence:%s", s.prefix, userID) }

func (s *Store) set(ctx context.Context, userID, status string, ttl time.Duration) error {
	b, err := json.Marshal(Presence{UserID: userID, Status: status, LastSeen: s.now().Unix()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), b, ttl).Err()
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, StatusOnline, s.ttl)
}

func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, StatusOffline, 0)
}

// Get returns the stored presence. A user never seen, or whose online entry expired, is
// reported offline.
func (s *Store) Get(ctx context.Context, userID string) (Presence, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Presence{UserID: userID, Status: StatusOffline}, nil
	}
	if err != nil {
		return Presence{}, err
	}
	var p Presence
	if err := json.Unmarshal(b, &p); err != nil {
		return Presence{}, err
	}
	p.UserID = userID
	return p, nil
}
