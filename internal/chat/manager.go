package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

// Recorder observes the optimistic send protocol and feed ingestion.
type Recorder interface {
	SendStarted()
	SendConfirmed()
	SendFailed()
	FeedEvent(eventType string, applied bool)
}

type nopRecorder struct{}

func (nopRecorder) SendStarted() {}
func (nopRecorder) SendConfirmed() {}
func (nopRecorder) SendFailed() {}
func (nopRecorder) FeedEvent(string, bool) {}

type Options struct {
	// AutoOpen makes the first incoming message select its sender when no target is active.
	AutoOpen    bool
	SearchLimit int64
	Metrics     Recorder
	Now         func() time.Time
	NewTempID   func() string
}

// Manager is the conversation state manager of one signed-in user. All state lives in its
// Store; the methods talk to the data service and dispatch the outcome.
type Manager struct {
	store *Store
	svc   dataservice.Service
	log   *zap.Logger
	opts  Options
}

func NewManager(self *domain.User, svc dataservice.Service, log *zap.Logger, opts Options) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = utils.NowUTC
	}
	if opts.NewTempID == nil {
		opts.NewTempID = utils.NewTempID
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	return &Manager{
		store: NewStore(self),
		svc:   svc,
		log:   logger.OrNop(log).With(zap.String("user_id", self.ID)),
		opts:  opts,
	}
}

func (m *Manager) Store() *Store { return m.store }

func (m *Manager) State() State { return m.store.State() }

func (m *Manager) OnChange(fn func(State)) func() { return m.store.OnChange(fn) }

func (m *Manager) selfID() string { return m.store.State().Self.ID }

// Load fetches every message of the user and the users they were exchanged with. On
// failure the state stays empty and the error is returned; there is no retry.
func (m *Manager) Load(ctx context.Context) error {
	self := m.selfID()
	msgs, err := m.svc.Messages.ListForUser(ctx, self)
	if err != nil {
		m.log.Warn("load messages failed", zap.Error(err))
		return fmt.Errorf("load messages: %w", err)
	}

	seen := map[string]bool{}
	var peers []string
	for _, msg := range msgs {
		p := msg.Peer(self)
		if p == self || seen[p] {
			continue
		}
		seen[p] = true
		peers = append(peers, p)
	}

	var users []*domain.User
	if len(peers) > 0 {
		users, err = m.svc.Users.GetUsers(ctx, peers)
		if err != nil {
			// names fall back to ids until the feed or a selection caches them
			m.log.Warn("load users failed", zap.Error(err))
			users = nil
		}
	}

	m.store.Dispatch(Loaded{Messages: msgs, Users: users})
	m.log.Debug("state loaded", zap.Int("messages", len(msgs)), zap.Int("users", len(users)))
	return nil
}

// Subscribe starts ingesting live feed events. Subscribing before Load loses nothing:
// events that arrive first are kept and merged with the loaded collection.
func (m *Manager) Subscribe(ctx context.Context) (dataservice.Subscription, error) {
	sub, err := m.svc.Feed.Subscribe(ctx, func(ev dataservice.Event) {
		m.HandleEvent(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe feed: %w", err)
	}
	return sub, nil
}

// Run subscribes to the live feed and ingests its events until ctx is done, then
// unsubscribes.
func (m *Manager) Run(ctx context.Context) error {
	sub, err := m.Subscribe(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		m.log.Warn("unsubscribe feed", zap.Error(err))
	}
	return nil
}

// HandleEvent ingests one live feed event. Inserts not involving the user or already
// present are ignored.
func (m *Manager) HandleEvent(ctx context.Context, ev dataservice.Event) {
	st := m.store.State()
	self := st.Self.ID
	switch ev.Type {
	case dataservice.EventInsert:
		rec := ev.Record
		if rec == nil || !rec.Involves(self) {
			m.opts.Metrics.FeedEvent(string(ev.Type), false)
			return
		}
		if _, dup := st.Lookup(rec.ID); dup {
			m.opts.Metrics.FeedEvent(string(ev.Type), false)
			return
		}
		m.resolveUser(ctx, rec.Peer(self))
		m.store.Dispatch(MessageReceived{Message: rec, AutoOpen: m.opts.AutoOpen})
		m.opts.Metrics.FeedEvent(string(ev.Type), true)
	case dataservice.EventUpdate:
		rec := ev.Record
		if rec == nil || !rec.Involves(self) {
			m.opts.Metrics.FeedEvent(string(ev.Type), false)
			return
		}
		_, known := st.Lookup(rec.ID)
		m.store.Dispatch(MessageChanged{Message: rec})
		m.opts.Metrics.FeedEvent(string(ev.Type), known)
	case dataservice.EventDelete:
		_, known := st.Lookup(ev.ID)
		m.store.Dispatch(MessageRemoved{ID: ev.ID})
		m.opts.Metrics.FeedEvent(string(ev.Type), known)
	default:
		m.log.Debug("ignoring feed event", zap.String("type", string(ev.Type)))
	}
}

// resolveUser makes sure id is in the user cache, fetching it when missing.
func (m *Manager) resolveUser(ctx context.Context, id string) *domain.User {
	st := m.store.State()
	if id == st.Self.ID {
		return st.Self
	}
	if u, ok := st.User(id); ok {
		return u
	}
	u, err := m.svc.Users.GetUser(ctx, id)
	if err != nil {
		m.log.Debug("resolve user failed", zap.String("peer_id", id), zap.Error(err))
		return nil
	}
	m.store.Dispatch(UserCached{User: u})
	return u
}

// LookupUser returns a user from the cache, fetching and caching it when missing.
func (m *Manager) LookupUser(ctx context.Context, userID string) (*domain.User, error) {
	st := m.store.State()
	if userID == st.Self.ID {
		return st.Self, nil
	}
	if u, ok := st.User(userID); ok {
		return u, nil
	}
	u, err := m.svc.Users.GetUser(ctx, userID)
	if errors.Is(err, dataservice.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	m.store.Dispatch(UserCached{User: u})
	return u, nil
}

// SelectTarget makes userID the active conversation partner.
func (m *Manager) SelectTarget(ctx context.Context, userID string) (*domain.User, error) {
	if userID == m.selfID() {
		return nil, ErrSelfTarget
	}
	u, err := m.LookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.store.Dispatch(TargetSelected{UserID: userID})
	return u, nil
}

// SelectByCode resolves a user code and makes its owner the active target. A malformed
// code is rejected before any lookup; an unknown one leaves the state unchanged.
func (m *Manager) SelectByCode(ctx context.Context, code string) (*domain.User, error) {
	if !ValidUserCode(code) {
		return nil, ErrInvalidAddress
	}
	u, err := m.svc.Users.FindByCode(ctx, code)
	if errors.Is(err, dataservice.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by code: %w", err)
	}
	if u.ID == m.selfID() {
		return nil, ErrSelfTarget
	}
	m.store.Dispatch(UserCached{User: u})
	m.store.Dispatch(TargetSelected{UserID: u.ID})
	return u, nil
}

func (m *Manager) ClearTarget() {
	m.store.Dispatch(TargetCleared{})
}

type SubmitResult struct {
	Target  *domain.User
	Message *domain.Message
}

// Submit handles raw composer input. "@<code> [text]" selects the owner of code and sends
// text to them when present; anything else is sent to the active target.
//
// A malformed address only fails with ErrInvalidAddress while no target is selected.
// Once a conversation is open, input such as "@12345" or "@bob hi" is delivered to the
// current target verbatim, so it costs a write like any other message.
func (m *Manager) Submit(ctx context.Context, input string, opts ...SendOption) (*SubmitResult, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	res := &SubmitResult{}
	if IsAddress(text) {
		addr, err := ParseAddress(text)
		switch {
		case err == nil:
			u, err := m.SelectByCode(ctx, addr.Code)
			if err != nil {
				return nil, err
			}
			res.Target = u
			if addr.Text == "" {
				return res, nil
			}
			text = addr.Text
		case m.store.State().Target == "":
			return nil, err
		}
	}
	msg, err := m.Send(ctx, text, opts...)
	if err != nil {
		return res, err
	}
	res.Message = msg
	return res, nil
}

type SendOption func(*domain.Message)

func WithReplyTo(messageID string) SendOption {
	return func(msg *domain.Message) { msg.ReplyToID = messageID }
}

// Send delivers content to the active target with the optimistic protocol.
func (m *Manager) Send(ctx context.Context, content string, opts ...SendOption) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	st := m.store.State()
	if st.Target == "" {
		return nil, ErrNoTarget
	}
	msg := &domain.Message{
		SenderID:   st.Self.ID,
		ReceiverID: st.Target,
		Content:    content,
		CreatedAt:  m.opts.Now(),
		Kind:       domain.KindText,
	}
	for _, opt := range opts {
		opt(msg)
	}
	if msg.ReplyToID != "" {
		if _, ok := st.Lookup(msg.ReplyToID); !ok {
			return nil, ErrMessageNotFound
		}
	}
	msg.Normalize()
	return m.deliver(ctx, msg)
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// SendMedia uploads a to object storage and sends it to the active target as an image or
// file message. caption may be empty.
func (m *Manager) SendMedia(ctx context.Context, a Attachment, caption string) (*domain.Message, error) {
	if m.svc.Objects == nil {
		return nil, ErrNoObjectStorage
	}
	if len(a.Data) == 0 {
		return nil, ErrEmptyAttachment
	}
	st := m.store.State()
	if st.Target == "" {
		return nil, ErrNoTarget
	}
	now := m.opts.Now()
	url, err := m.svc.Objects.Upload(ctx, MediaKey(st.Self.ID, a.Name, now), a.ContentType, a.Data)
	if err != nil {
		m.log.Warn("media upload failed", zap.String("name", a.Name), zap.Error(err))
		return nil, fmt.Errorf("upload media: %w", err)
	}
	kind := domain.KindFile
	if utils.IsImage(a.ContentType) {
		kind = domain.KindImage
	}
	content := strings.TrimSpace(caption)
	if content == "" {
		content = a.Name
	}
	msg := &domain.Message{
		SenderID:   st.Self.ID,
		ReceiverID: st.Target,
		Content:    content,
		CreatedAt:  now,
		Kind:       kind,
		MediaURL:   url,
		MediaName:  a.Name,
		MediaSize:  int64(len(a.Data)),
	}
	msg.Normalize()
	return m.deliver(ctx, msg)
}

// MediaKey is the object key of a chat attachment: chat-media/<user>/<unix-ms><ext>.
func MediaKey(userID, name string, at time.Time) string {
	return fmt.Sprintf("chat-media/%s/%d%s", userID, at.UnixMilli(), strings.ToLower(filepath.Ext(name)))
}

// deliver runs the optimistic protocol: show a pending entry, insert, then swap in the
// confirmed record or drop the pending one.
func (m *Manager) deliver(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	tempID := m.opts.NewTempID()
	m.store.Dispatch(SendStarted{TempID: tempID, Message: msg})
	m.opts.Metrics.SendStarted()

	rec, err := m.svc.Messages.InsertMessage(ctx, msg)
	if err != nil {
		m.store.Dispatch(SendFailed{TempID: tempID})
		m.opts.Metrics.SendFailed()
		m.log.Warn("send failed", zap.String("receiver_id", msg.ReceiverID), zap.Error(err))
		return nil, fmt.Errorf("send message: %w", err)
	}
	m.store.Dispatch(SendConfirmed{TempID: tempID, Message: rec})
	m.opts.Metrics.SendConfirmed()
	return rec, nil
}

// confirmed finds the confirmed entry id and its position.
func (m *Manager) confirmed(id string) (Entry, int, error) {
	st := m.store.State()
	for i, e := range st.Entries {
		if e.Status == Confirmed && e.Message.ID == id {
			return e, i, nil
		}
		if e.Status == Pending && e.TempID == id {
			return Entry{}, -1, ErrPendingMessage
		}
	}
	return Entry{}, -1, ErrMessageNotFound
}

// React toggles the user's emoji reaction on message id.
func (m *Manager) React(ctx context.Context, id, emoji string) error {
	if err := ValidateReaction(emoji); err != nil {
		return err
	}
	e, _, err := m.confirmed(id)
	if err != nil {
		return err
	}
	self := m.store.State().Self
	prev := e.Message
	next := prev.Clone()
	next.Reactions = ToggleReaction(prev.Reactions, self.ID, emoji)
	for i := range next.Reactions {
		r := &next.Reactions[i]
		if r.UserID == self.ID && r.Emoji == emoji && r.Username == "" {
			r.Username = self.Username
		}
	}
	return m.mirror(next, prev, func() (*domain.Message, error) {
		return m.svc.Messages.SetReactions(ctx, id, next.Reactions)
	})
}

// Edit replaces the content of one of the user's own messages.
func (m *Manager) Edit(ctx context.Context, id, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	e, _, err := m.confirmed(id)
	if err != nil {
		return err
	}
	if e.Message.SenderID != m.selfID() {
		return ErrNotOwner
	}
	prev := e.Message
	next := prev.Clone()
	at := m.opts.Now()
	next.Content = content
	next.EditedAt = &at
	return m.mirror(next, prev, func() (*domain.Message, error) {
		return m.svc.Messages.EditMessage(ctx, id, content, at)
	})
}

// DeleteForMe hides message id from the user only.
func (m *Manager) DeleteForMe(ctx context.Context, id string) error {
	e, _, err := m.confirmed(id)
	if err != nil {
		return err
	}
	self := m.selfID()
	if e.Message.DeletedForUser(self) {
		return nil
	}
	prev := e.Message
	next := prev.Clone()
	next.DeletedFor = append(next.DeletedFor, self)
	return m.mirror(next, prev, func() (*domain.Message, error) {
		return m.svc.Messages.SoftDelete(ctx, id, self)
	})
}

// DeleteForEveryone removes one of the user's own messages for both parties.
func (m *Manager) DeleteForEveryone(ctx context.Context, id string) error {
	e, idx, err := m.confirmed(id)
	if err != nil {
		return err
	}
	if e.Message.SenderID != m.selfID() {
		return ErrNotOwner
	}
	m.store.Dispatch(MessageRemoved{ID: id})
	if err := m.svc.Messages.DeleteMessage(ctx, id); err != nil && !errors.Is(err, dataservice.ErrNotFound) {
		m.store.Dispatch(MessageRestored{Entry: e, Index: idx})
		m.log.Warn("delete message failed", zap.String("message_id", id), zap.Error(err))
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ClearConversation deletes every message exchanged with the active target.
func (m *Manager) ClearConversation(ctx context.Context) (int64, error) {
	st := m.store.State()
	if st.Target == "" {
		return 0, ErrNoTarget
	}
	n, err := m.svc.Messages.DeleteConversation(ctx, st.Self.ID, st.Target)
	if err != nil {
		return 0, fmt.Errorf("clear conversation: %w", err)
	}
	m.store.Dispatch(ConversationCleared{Peer: st.Target})
	return n, nil
}

// SearchUsers looks up other users by username substring or user code.
func (m *Manager) SearchUsers(ctx context.Context, query string) ([]*domain.User, error) {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), AddressSigil))
	if query == "" {
		return []*domain.User{}, nil
	}
	users, err := m.svc.Users.SearchUsers(ctx, query, m.selfID(), m.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// UpdateSelf replaces the signed-in user's record, e.g. after a profile change.
func (m *Manager) UpdateSelf(u *domain.User) {
	m.store.Dispatch(SelfUpdated{User: u})
}

// mirror shows next locally, asks the service to apply the same change and adopts its
// answer. On failure prev is put back.
func (m *Manager) mirror(next, prev *domain.Message, call func() (*domain.Message, error)) error {
	m.store.Dispatch(MessageChanged{Message: next})
	rec, err := call()
	if err != nil {
		m.store.Dispatch(MessageChanged{Message: prev})
		m.log.Warn("message update failed", zap.String("message_id", prev.ID), zap.Error(err))
		return fmt.Errorf("update message: %w", err)
	}
	if rec != nil {
		m.store.Dispatch(MessageChanged{Message: rec})
	}
	return nil
}
