package chat

import (
	"sync"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

// Store is the single authoritative container for a session's State. User actions, feed
// pushes and network responses all reach the state through Dispatch, which applies events
// one at a time.
type Store struct {
	dispatchMu sync.Mutex // orders reduce + notify
	mu         sync.RWMutex
	state      State

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextID      int
}

func NewStore(self *domain.User) *Store {
	return &Store{
		state:     State{Self: self.Clone(), Users: map[string]*domain.User{}},
		listeners: map[int]func(State){},
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces ev into the state and notifies listeners with the new snapshot.
// Listeners must not call Dispatch.
func (s *Store) Dispatch(ev Event) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	next := s.state
	s.mu.Unlock()

	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return next
}

// OnChange registers fn to run after every dispatch and returns a function removing it.
func (s *Store) OnChange(fn func(State)) func() {
	s.listenersMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}
