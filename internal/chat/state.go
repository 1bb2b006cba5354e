package chat

import (
	"sort"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

type Status int

const (
	// Pending entries were created locally and are waiting for the service to confirm them.
	Pending Status = iota
	// Confirmed entries carry a service-assigned id.
	Confirmed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Entry is one message in the collection. A pending entry is keyed by TempID, a
// confirmed one by Message.ID; the two never overlap.
type Entry struct {
	Status  Status
	TempID  string
	Message *domain.Message
}

func (e Entry) Key() string {
	if e.Status == Pending {
		return e.TempID
	}
	return e.Message.ID
}

// State is an immutable snapshot of one session. Reduce never mutates a State in place,
// so snapshots may be shared freely.
type State struct {
	Self    *domain.User
	Entries []Entry
	Users   map[string]*domain.User
	Target  string
	Loaded  bool
}

func (s State) indexOfConfirmed(id string) int {
	for i, e := range s.Entries {
		if e.Status == Confirmed && e.Message.ID == id {
			return i
		}
	}
	return -1
}

func (s State) indexOfPending(tempID string) int {
	for i, e := range s.Entries {
		if e.Status == Pending && e.TempID == tempID {
			return i
		}
	}
	return -1
}

// indexOfEchoed finds the oldest pending entry that m is the stored copy of.
func (s State) indexOfEchoed(m *domain.Message) int {
	for i, e := range s.Entries {
		if e.Status != Pending {
			continue
		}
		p := e.Message
		if p.ReceiverID == m.ReceiverID && p.Content == m.Content && p.Kind == m.Kind &&
			p.ReplyToID == m.ReplyToID && p.MediaURL == m.MediaURL {
			return i
		}
	}
	return -1
}

// Lookup returns the confirmed entry with id.
func (s State) Lookup(id string) (Entry, bool) {
	if i := s.indexOfConfirmed(id); i >= 0 {
		return s.Entries[i], true
	}
	return Entry{}, false
}

// User returns the cached user record for id.
func (s State) User(id string) (*domain.User, bool) {
	u, ok := s.Users[id]
	return u, ok
}

// DisplayName resolves id through the cache, falling back to the id itself.
func (s State) DisplayName(id string) string {
	if s.Self != nil && s.Self.ID == id {
		return s.Self.DisplayName()
	}
	if u, ok := s.Users[id]; ok {
		return u.DisplayName()
	}
	return id
}

// ActiveView returns the entries between self and the active target, in collection order,
// without those soft-deleted for self.
func (s State) ActiveView() []Entry {
	if s.Self == nil || s.Target == "" {
		return nil
	}
	return ConversationView(s.Entries, s.Self.ID, s.Target)
}

// ConversationView is the pure filter behind ActiveView.
func ConversationView(entries []Entry, self, target string) []Entry {
	out := []Entry{}
	for _, e := range entries {
		m := e.Message
		if !m.InConversation(self, target) || m.DeletedForUser(self) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Peer summarises one conversation for the recent chats list.
type Peer struct {
	UserID      string
	LastMessage *domain.Message
}

// Peers lists every conversation partner, most recent activity first.
func (s State) Peers() []Peer {
	if s.Self == nil {
		return nil
	}
	last := map[string]int{}
	for i, e := range s.Entries {
		m := e.Message
		if m.DeletedForUser(s.Self.ID) {
			continue
		}
		last[m.Peer(s.Self.ID)] = i
	}
	out := make([]Peer, 0, len(last))
	for id, i := range last {
		out = append(out, Peer{UserID: id, LastMessage: s.Entries[i].Message})
	}
	sort.Slice(out, func(a, b int) bool {
		return last[out[a].UserID] > last[out[b].UserID]
	})
	return out
}
