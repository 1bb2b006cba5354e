package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to, content string, offset int) *domain.Message {
	m := &domain.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		CreatedAt:  t0.Add(time.Duration(offset) * time.Second),
	}
	m.Normalize()
	return m
}

func newState(self string) State {
	return State{Self: &domain.User{ID: self, Username: self}, Users: map[string]*domain.User{}}
}

func countID(s State, id string) int {
	n := 0
	for _, e := range s.Entries {
		if e.Status == Confirmed && e.Message.ID == id {
			n++
		}
	}
	return n
}

func keys(s State) []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Key())
	}
	return out
}

func TestReduceConfirmThenFeed(t *testing.T) {
	s := newState("u1")
	draft := msg("", "u1", "u2", "hi", 0)
	s = Reduce(s, SendStarted{TempID: "t1", Message: draft})
	s = Reduce(s, SendConfirmed{TempID: "t1", Message: msg("m1", "u1", "u2", "hi", 1)})
	s = Reduce(s, MessageReceived{Message: msg("m1", "u1", "u2", "hi", 1)})

	require.Len(t, s.Entries, 1)
	assert.Equal(t, Confirmed, s.Entries[0].Status)
	assert.Equal(t, 1, countID(s, "m1"))
}

func TestReduceFeedThenConfirm(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, SendStarted{TempID: "t1", Message: msg("", "u1", "u2", "hi", 0)})
	s = Reduce(s, MessageReceived{Message: msg("m0", "u2", "u1", "earlier", 0)})
	s = Reduce(s, MessageReceived{Message: msg("m1", "u1", "u2", "hi", 1)})
	// the echo takes over the pending entry before the confirmation arrives
	require.Len(t, s.Entries, 2)
	assert.Equal(t, Confirmed, s.Entries[0].Status)
	assert.Equal(t, "m1", s.Entries[0].Message.ID)

	s = Reduce(s, SendConfirmed{TempID: "t1", Message: msg("m1", "u1", "u2", "hi", 1)})

	require.Len(t, s.Entries, 2)
	assert.Equal(t, 1, countID(s, "m1"))
	// the confirmed record takes the pending entry's slot
	assert.Equal(t, "m1", s.Entries[0].Message.ID)
	assert.Equal(t, "m0", s.Entries[1].Message.ID)
	for _, e := range s.Entries {
		assert.NotEqual(t, "t1", e.TempID)
	}
}

func TestReduceEchoMatchesOldestPending(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, SendStarted{TempID: "t1", Message: msg("", "u1", "u2", "hi", 0)})
	s = Reduce(s, SendStarted{TempID: "t2", Message: msg("", "u1", "u2", "hi", 0)})
	s = Reduce(s, SendStarted{TempID: "t3", Message: msg("", "u1", "u3", "hi", 0)})

	s = Reduce(s, MessageReceived{Message: msg("m1", "u1", "u2", "hi", 1)})
	require.Len(t, s.Entries, 3)
	assert.Equal(t, "m1", s.Entries[0].Key())
	assert.Equal(t, "t2", s.Entries[1].Key())
	assert.Equal(t, "t3", s.Entries[2].Key())

	// a different text to the same peer is a separate message
	s = Reduce(s, MessageReceived{Message: msg("m9", "u1", "u2", "other device", 2)})
	require.Len(t, s.Entries, 4)
	assert.Equal(t, "t2", s.Entries[1].Key())

	s = Reduce(s, SendConfirmed{TempID: "t1", Message: msg("m1", "u1", "u2", "hi", 1)})
	s = Reduce(s, SendConfirmed{TempID: "t2", Message: msg("m2", "u1", "u2", "hi", 1)})
	assert.Equal(t, []string{"m1", "m2", "t3", "m9"}, keys(s))
}

func TestReduceSendFailedLeavesNoTrace(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m0", "u2", "u1", "yo", 0)})
	s = Reduce(s, SendStarted{TempID: "t1", Message: msg("", "u1", "u2", "hi", 1)})
	require.Len(t, s.Entries, 2)

	s = Reduce(s, SendFailed{TempID: "t1"})
	require.Len(t, s.Entries, 1)
	assert.Equal(t, "m0", s.Entries[0].Key())
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m0", "u2", "u1", "yo", 0)})
	before := s

	edited := msg("m0", "u2", "u1", "edited", 0)
	after := Reduce(s, MessageChanged{Message: edited})

	assert.Equal(t, "yo", before.Entries[0].Message.Content)
	assert.Equal(t, "edited", after.Entries[0].Message.Content)

	cached := Reduce(before, UserCached{User: &domain.User{ID: "u2"}})
	assert.Empty(t, before.Users)
	assert.Len(t, cached.Users, 1)
}

func TestReduceIgnoresForeignAndDuplicateInserts(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m0", "u2", "u3", "not for me", 0)})
	assert.Empty(t, s.Entries)

	s = Reduce(s, MessageReceived{Message: msg("m1", "u2", "u1", "a", 0)})
	s = Reduce(s, MessageReceived{Message: msg("m1", "u2", "u1", "a", 0)})
	assert.Len(t, s.Entries, 1)
}

func TestReduceAutoOpen(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m1", "u1", "u2", "mine", 0), AutoOpen: true})
	assert.Empty(t, s.Target, "own messages never open a conversation")

	s = Reduce(s, MessageReceived{Message: msg("m2", "u2", "u1", "hey", 1), AutoOpen: true})
	assert.Equal(t, "u2", s.Target)

	s = Reduce(s, MessageReceived{Message: msg("m3", "u3", "u1", "hey", 2), AutoOpen: true})
	assert.Equal(t, "u2", s.Target, "an active target is kept")

	s = Reduce(s, TargetCleared{})
	s = Reduce(s, MessageReceived{Message: msg("m4", "u3", "u1", "again", 3)})
	assert.Empty(t, s.Target)
}

func TestReduceLoadedSortsAndKeepsLateArrivals(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, SendStarted{TempID: "t1", Message: msg("", "u1", "u2", "pending", 9)})
	s = Reduce(s, MessageReceived{Message: msg("m2", "u2", "u1", "b", 2)})

	s = Reduce(s, Loaded{
		Messages: []*domain.Message{
			msg("m2", "u2", "u1", "b", 2),
			msg("m1", "u1", "u2", "a", 1),
			msg("mx", "u3", "u4", "foreign", 0),
		},
		Users: []*domain.User{{ID: "u2", Username: "bob"}},
	})

	require.True(t, s.Loaded)
	keys := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{"m1", "m2", "t1"}, keys)
	assert.Equal(t, "bob", s.DisplayName("u2"))
}

func TestReduceRemoveAndRestore(t *testing.T) {
	s := newState("u1")
	for i, id := range []string{"m1", "m2", "m3"} {
		s = Reduce(s, MessageReceived{Message: msg(id, "u2", "u1", id, i)})
	}
	e, ok := s.Lookup("m2")
	require.True(t, ok)

	s = Reduce(s, MessageRemoved{ID: "m2"})
	require.Len(t, s.Entries, 2)

	s = Reduce(s, MessageRestored{Entry: e, Index: 1})
	require.Len(t, s.Entries, 3)
	assert.Equal(t, "m2", s.Entries[1].Message.ID)

	s = Reduce(s, MessageRestored{Entry: e, Index: 0})
	assert.Len(t, s.Entries, 3, "restoring a present entry is a no-op")
}

func TestReduceConversationCleared(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m1", "u2", "u1", "a", 0)})
	s = Reduce(s, MessageReceived{Message: msg("m2", "u3", "u1", "b", 1)})
	s = Reduce(s, SendStarted{TempID: "t1", Message: msg("", "u1", "u2", "c", 2)})

	s = Reduce(s, ConversationCleared{Peer: "u2"})
	keys := []string{}
	for _, e := range s.Entries {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{"m2", "t1"}, keys)
}

func TestConversationView(t *testing.T) {
	hidden := msg("m3", "u2", "u1", "hidden", 2)
	hidden.DeletedFor = []string{"u1"}
	hiddenForPeer := msg("m4", "u1", "u2", "kept", 3)
	hiddenForPeer.DeletedFor = []string{"u2"}

	entries := []Entry{
		{Status: Confirmed, Message: msg("m1", "u1", "u2", "a", 0)},
		{Status: Confirmed, Message: msg("m2", "u3", "u1", "other", 1)},
		{Status: Confirmed, Message: hidden},
		{Status: Confirmed, Message: hiddenForPeer},
		{Status: Pending, TempID: "t1", Message: msg("", "u1", "u2", "b", 4)},
		{Status: Confirmed, Message: msg("m5", "u2", "u1", "c", 5)},
	}

	view := ConversationView(entries, "u1", "u2")
	keys := []string{}
	for _, e := range view {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{"m1", "m4", "t1", "m5"}, keys)

	assert.Empty(t, ConversationView(entries, "u1", "u9"))
}

func TestStatePeers(t *testing.T) {
	s := newState("u1")
	s = Reduce(s, MessageReceived{Message: msg("m1", "u2", "u1", "a", 0)})
	s = Reduce(s, MessageReceived{Message: msg("m2", "u3", "u1", "b", 1)})
	s = Reduce(s, MessageReceived{Message: msg("m3", "u1", "u2", "c", 2)})

	peers := s.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, "u2", peers[0].UserID)
	assert.Equal(t, "m3", peers[0].LastMessage.ID)
	assert.Equal(t, "u3", peers[1].UserID)
}

func TestStoreNotifiesListeners(t *testing.T) {
	st := NewStore(&domain.User{ID: "u1"})
	var seen []string
	off := st.OnChange(func(s State) { seen = append(seen, s.Target) })

	st.Dispatch(TargetSelected{UserID: "u2"})
	off()
	st.Dispatch(TargetCleared{})

	assert.Equal(t, []string{"u2"}, seen)
	assert.Empty(t, st.State().Target)
}
