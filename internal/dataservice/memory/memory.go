// Package memory is an in-process data service used by the memory driver and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

type subscriber struct {
	id int
	fn func(dataservice.Event)
}

type Store struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	messages []*domain.Message
	objects  map[string][]byte

	subs   []subscriber
	nextID int

	paused  bool
	pending []dataservice.Event

	insertErr error
	updateErr error
	listErr   error

	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		users:   make(map[string]*domain.User),
		objects: make(map[string][]byte),
		now:     utils.NowUTC,
		newID:   utils.NewID,
	}
}

// Service returns the store wired as every collaborator of a dataservice.Service.
func (s *Store) Service() dataservice.Service {
	return dataservice.Service{Users: s, Messages: s, Feed: s, Objects: s}
}

// SetClock overrides the timestamp source for inserted records.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetIDGenerator overrides the id source for inserted records.
func (s *Store) SetIDGenerator(gen func() string) {
	s.mu.Lock()
	s.newID = gen
	s.mu.Unlock()
}

// SetInsertError makes every InsertMessage fail with err until reset with nil.
func (s *Store) SetInsertError(err error) {
	s.mu.Lock()
	s.insertErr = err
	s.mu.Unlock()
}

// SetUpdateError makes message mutations other than insert fail with err.
func (s *Store) SetUpdateError(err error) {
	s.mu.Lock()
	s.updateErr = err
	s.mu.Unlock()
}

func (s *Store) SetListError(err error) {
	s.mu.Lock()
	s.listErr = err
	s.mu.Unlock()
}

// PauseFeed buffers feed events until FlushFeed is called.
func (s *Store) PauseFeed() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// FlushFeed resumes the feed and delivers the buffered events in order.
func (s *Store) FlushFeed() {
	s.mu.Lock()
	s.paused = false
	evs := s.pending
	s.pending = nil
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, ev := range evs {
		deliver(subs, ev)
	}
}

// Emit pushes ev to subscribers as if a remote client had caused it.
func (s *Store) Emit(ev dataservice.Event) {
	s.mu.Lock()
	subs, ok := s.queueLocked(ev)
	s.mu.Unlock()
	if ok {
		deliver(subs, ev)
	}
}

func (s *Store) queueLocked(ev dataservice.Event) ([]subscriber, bool) {
	if s.paused {
		s.pending = append(s.pending, ev)
		return nil, false
	}
	return append([]subscriber(nil), s.subs...), true
}

func deliver(subs []subscriber, ev dataservice.Event) {
	for _, sub := range subs {
		e := ev
		if ev.Record != nil {
			e.Record = ev.Record.Clone()
		}
		sub.fn(e)
	}
}

// ---- users ----

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, dataservice.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u.Clone(), nil
		}
	}
	return nil, dataservice.ErrNotFound
}

func (s *Store) FindByCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserCode == code {
			return u.Clone(), nil
		}
	}
	return nil, dataservice.ErrNotFound
}

func (s *Store) SearchUsers(_ context.Context, query, excludeID string, limit int64) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []*domain.User{}
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || u.UserCode == q {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) || (u.UserCode != "" && existing.UserCode == u.UserCode) {
			return dataservice.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = s.newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, dataservice.ErrNotFound
	}
	upd.Apply(u)
	return u.Clone(), nil
}

// ---- messages ----

func (s *Store) ListForUser(_ context.Context, userID string) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []*domain.Message{}
	for _, m := range s.messages {
		if m.Involves(userID) {
			out = append(out, m.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InsertMessage(_ context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	if s.insertErr != nil {
		err := s.insertErr
		s.mu.Unlock()
		return nil, err
	}
	rec := m.Clone()
	rec.ID = s.newID()
	rec.CreatedAt = s.now()
	rec.Normalize()
	s.messages = append(s.messages, rec)
	ev := dataservice.Event{Type: dataservice.EventInsert, ID: rec.ID, Record: rec.Clone()}
	subs, ok := s.queueLocked(ev)
	out := rec.Clone()
	s.mu.Unlock()

	if ok {
		deliver(subs, ev)
	}
	return out, nil
}

func (s *Store) mutate(id string, fn func(m *domain.Message)) (*domain.Message, error) {
	s.mu.Lock()
	if s.updateErr != nil {
		err := s.updateErr
		s.mu.Unlock()
		return nil, err
	}
	var rec *domain.Message
	for _, m := range s.messages {
		if m.ID == id {
			rec = m
			break
		}
	}
	if rec == nil {
		s.mu.Unlock()
		return nil, dataservice.ErrNotFound
	}
	fn(rec)
	ev := dataservice.Event{Type: dataservice.EventUpdate, ID: rec.ID, Record: rec.Clone()}
	subs, ok := s.queueLocked(ev)
	out := rec.Clone()
	s.mu.Unlock()

	if ok {
		deliver(subs, ev)
	}
	return out, nil
}

func (s *Store) EditMessage(_ context.Context, id, content string, at time.Time) (*domain.Message, error) {
	return s.mutate(id, func(m *domain.Message) {
		m.Content = content
		t := at
		m.EditedAt = &t
	})
}

func (s *Store) SetReactions(_ context.Context, id string, reactions []domain.Reaction) (*domain.Message, error) {
	return s.mutate(id, func(m *domain.Message) {
		m.Reactions = append([]domain.Reaction{}, reactions...)
	})
}

func (s *Store) SoftDelete(_ context.Context, id, userID string) (*domain.Message, error) {
	return s.mutate(id, func(m *domain.Message) {
		if !m.DeletedForUser(userID) {
			m.DeletedFor = append(m.DeletedFor, userID)
		}
	})
}

func (s *Store) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	if s.updateErr != nil {
		err := s.updateErr
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i, m := range s.messages {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return dataservice.ErrNotFound
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	ev := dataservice.Event{Type: dataservice.EventDelete, ID: id}
	subs, ok := s.queueLocked(ev)
	s.mu.Unlock()

	if ok {
		deliver(subs, ev)
	}
	return nil
}

func (s *Store) DeleteConversation(_ context.Context, a, b string) (int64, error) {
	s.mu.Lock()
	if s.updateErr != nil {
		err := s.updateErr
		s.mu.Unlock()
		return 0, err
	}
	kept := s.messages[:0]
	var removed []string
	for _, m := range s.messages {
		if m.InConversation(a, b) {
			removed = append(removed, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	var evs []dataservice.Event
	var subs []subscriber
	for _, id := range removed {
		ev := dataservice.Event{Type: dataservice.EventDelete, ID: id}
		if ss, ok := s.queueLocked(ev); ok {
			subs = ss
			evs = append(evs, ev)
		}
	}
	s.mu.Unlock()

	for _, ev := range evs {
		deliver(subs, ev)
	}
	return int64(len(removed)), nil
}

// ---- feed ----

func (s *Store) Subscribe(ctx context.Context, fn func(dataservice.Event)) (dataservice.Subscription, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() error {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					break
				}
			}
		})
		return nil
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = unsubscribe()
		case <-done:
		}
	}()
	return dataservice.SubscriptionFunc(unsubscribe), nil
}

// Subscribers reports the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ---- objects ----

func (s *Store) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// Object returns the bytes stored under key.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}
