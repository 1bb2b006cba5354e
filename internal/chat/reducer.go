package chat

import (
	"sort"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

// Event is anything that changes a State. Every mutation of a session goes through Reduce.
type Event interface {
	isEvent()
}

// Loaded installs the initial message collection and user cache.
type Loaded struct {
	Messages []*domain.Message
	Users    []*domain.User
}

type TargetSelected struct{ UserID string }

type TargetCleared struct{}

type UserCached struct{ User *domain.User }

type SelfUpdated struct{ User *domain.User }

// SendStarted appends a pending entry for a local send.
type SendStarted struct {
	TempID  string
	Message *domain.Message
}

// SendConfirmed swaps the pending entry TempID for the stored record.
type SendConfirmed struct {
	TempID  string
	Message *domain.Message
}

// SendFailed drops the pending entry TempID.
type SendFailed struct{ TempID string }

// MessageReceived is an insert pushed by the live feed. With AutoOpen set, a message from
// another user opens its conversation when no target is active.
type MessageReceived struct {
	Message  *domain.Message
	AutoOpen bool
}

// MessageChanged replaces a confirmed entry with a newer copy of the same record.
type MessageChanged struct{ Message *domain.Message }

type MessageRemoved struct{ ID string }

// MessageRestored puts back an entry removed optimistically, at Index when possible.
type MessageRestored struct {
	Entry Entry
	Index int
}

// ConversationCleared removes every confirmed message exchanged with Peer.
type ConversationCleared struct{ Peer string }

func (Loaded) isEvent() {}
func (TargetSelected) isEvent() {}
func (TargetCleared) isEvent() {}
func (UserCached) isEvent() {}
func (SelfUpdated) isEvent() {}
func (SendStarted) isEvent() {}
func (SendConfirmed) isEvent() {}
func (SendFailed) isEvent() {}
func (MessageReceived) isEvent() {}
func (MessageChanged) isEvent() {}
func (MessageRemoved) isEvent() {}
func (MessageRestored) isEvent() {}
func (ConversationCleared) isEvent() {}

// Reduce applies ev to s and returns the resulting state. s is left untouched.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case Loaded:
		return reduceLoaded(s, e)
	case TargetSelected:
		s.Target = e.UserID
		return s
	case TargetCleared:
		s.Target = ""
		return s
	case UserCached:
		if e.User == nil {
			return s
		}
		s.Users = withUser(s.Users, e.User)
		return s
	case SelfUpdated:
		if e.User == nil {
			return s
		}
		s.Self = e.User.Clone()
		return s
	case SendStarted:
		if s.indexOfPending(e.TempID) >= 0 {
			return s
		}
		return withEntries(s, append(cloneEntries(s.Entries), Entry{
			Status:  Pending,
			TempID:  e.TempID,
			Message: e.Message.Clone(),
		}))
	case SendConfirmed:
		return reduceConfirmed(s, e)
	case SendFailed:
		i := s.indexOfPending(e.TempID)
		if i < 0 {
			return s
		}
		return withEntries(s, removeAt(s.Entries, i))
	case MessageReceived:
		return reduceReceived(s, e)
	case MessageChanged:
		if e.Message == nil {
			return s
		}
		i := s.indexOfConfirmed(e.Message.ID)
		if i < 0 {
			return s
		}
		entries := cloneEntries(s.Entries)
		entries[i] = Entry{Status: Confirmed, Message: e.Message.Clone()}
		return withEntries(s, entries)
	case MessageRemoved:
		i := s.indexOfConfirmed(e.ID)
		if i < 0 {
			return s
		}
		return withEntries(s, removeAt(s.Entries, i))
	case MessageRestored:
		if e.Entry.Message == nil || s.indexOfConfirmed(e.Entry.Message.ID) >= 0 {
			return s
		}
		idx := e.Index
		if idx < 0 || idx > len(s.Entries) {
			idx = len(s.Entries)
		}
		entries := make([]Entry, 0, len(s.Entries)+1)
		entries = append(entries, s.Entries[:idx]...)
		entries = append(entries, Entry{Status: Confirmed, Message: e.Entry.Message.Clone()})
		entries = append(entries, s.Entries[idx:]...)
		return withEntries(s, entries)
	case ConversationCleared:
		if s.Self == nil {
			return s
		}
		entries := make([]Entry, 0, len(s.Entries))
		for _, en := range s.Entries {
			if en.Status == Confirmed && en.Message.InConversation(s.Self.ID, e.Peer) {
				continue
			}
			entries = append(entries, en)
		}
		return withEntries(s, entries)
	default:
		return s
	}
}

// reduceLoaded installs the fetched collection and keeps whatever arrived meanwhile
// (pending sends and feed inserts not part of the snapshot) after it.
func reduceLoaded(s State, e Loaded) State {
	loaded := make([]*domain.Message, 0, len(e.Messages))
	seen := make(map[string]bool, len(e.Messages))
	for _, m := range e.Messages {
		if m == nil || seen[m.ID] {
			continue
		}
		if s.Self != nil && !m.Involves(s.Self.ID) {
			continue
		}
		seen[m.ID] = true
		loaded = append(loaded, m)
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
	})

	entries := make([]Entry, 0, len(loaded)+len(s.Entries))
	for _, m := range loaded {
		entries = append(entries, Entry{Status: Confirmed, Message: m.Clone()})
	}
	for _, en := range s.Entries {
		if en.Status == Confirmed && seen[en.Message.ID] {
			continue
		}
		entries = append(entries, en)
	}

	users := s.Users
	for _, u := range e.Users {
		users = withUser(users, u)
	}
	s = withEntries(s, entries)
	s.Users = users
	s.Loaded = true
	return s
}

// reduceConfirmed replaces the pending entry in place. If the feed already delivered the
// confirmed record, that later copy is dropped so the id occurs exactly once. When the feed
// already took over the pending entry there is nothing left to do.
func reduceConfirmed(s State, e SendConfirmed) State {
	if e.Message == nil {
		return s
	}
	pi := s.indexOfPending(e.TempID)
	if pi < 0 {
		return reduceReceived(s, MessageReceived{Message: e.Message})
	}
	ci := s.indexOfConfirmed(e.Message.ID)

	entries := make([]Entry, 0, len(s.Entries))
	for i, en := range s.Entries {
		switch i {
		case pi:
			entries = append(entries, Entry{Status: Confirmed, Message: e.Message.Clone()})
		case ci:
		default:
			entries = append(entries, en)
		}
	}
	return withEntries(s, entries)
}

func reduceReceived(s State, e MessageReceived) State {
	m := e.Message
	if m == nil || s.Self == nil || !m.Involves(s.Self.ID) {
		return s
	}
	if s.indexOfConfirmed(m.ID) >= 0 {
		return s
	}
	if m.SenderID == s.Self.ID {
		// the feed can deliver our own insert before the send is confirmed
		if pi := s.indexOfEchoed(m); pi >= 0 {
			entries := cloneEntries(s.Entries)
			entries[pi] = Entry{Status: Confirmed, Message: m.Clone()}
			return withEntries(s, entries)
		}
	}
	s = withEntries(s, append(cloneEntries(s.Entries), Entry{Status: Confirmed, Message: m.Clone()}))
	if e.AutoOpen && s.Target == "" && m.SenderID != s.Self.ID {
		s.Target = m.SenderID
	}
	return s
}

func withEntries(s State, entries []Entry) State {
	s.Entries = entries
	return s
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries), len(entries)+1)
	copy(out, entries)
	return out
}

func removeAt(entries []Entry, i int) []Entry {
	out := make([]Entry, 0, len(entries)-1)
	out = append(out, entries[:i]...)
	return append(out, entries[i+1:]...)
}

func withUser(users map[string]*domain.User, u *domain.User) map[string]*domain.User {
	if u == nil {
		return users
	}
	out := make(map[string]*domain.User, len(users)+1)
	for k, v := range users {
		out[k] = v
	}
	out[u.ID] = u.Clone()
	return out
}
