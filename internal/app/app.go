// Package app owns the lifecycle of the signed-in session: it restores or creates the
// identity, builds the conversation manager and tears it down again on logout.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/auth"
	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/session"
	"github.com/realaloky/Fast-chat-app/internal/storage"
)

var (
	ErrNotSignedIn  = errors.New("not signed in")
	ErrWrongSession = errors.New("token belongs to another session")
)

// SessionStore persists the identity between runs.
type SessionStore interface {
	Save(session.Saved) error
	Load() (*session.Saved, error)
	Clear() error
}

type Options struct {
	Chat chat.Options

	// Heartbeat is how often the signed-in user's presence is renewed. Zero disables it.
	Heartbeat time.Duration
}

type active struct {
	sess   *auth.Session
	mgr    *chat.Manager
	sub    dataservice.Subscription
	cancel context.CancelFunc
	beats  sync.WaitGroup
}

type App struct {
	svc      dataservice.Service
	auth     *auth.Service
	sessions SessionStore
	opts     Options
	log      *zap.Logger

	mu      sync.RWMutex
	current *active
}

func New(svc dataservice.Service, authSvc *auth.Service, sessions SessionStore, log *zap.Logger, opts Options) *App {
	return &App{svc: svc, auth: authSvc, sessions: sessions, opts: opts, log: logger.OrNop(log)}
}

// Restore resumes the locally stored session. A stale token clears the stored session.
func (a *App) Restore(ctx context.Context) (*auth.Session, error) {
	saved, err := a.sessions.Load()
	if err != nil {
		return nil, err
	}
	sess, err := a.auth.Resume(ctx, saved.Token)
	if errors.Is(err, auth.ErrInvalidToken) {
		a.log.Info("stored session expired", zap.String("user_id", saved.User.ID))
		_ = a.sessions.Clear()
		return nil, session.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, sess)
}

func (a *App) Signup(ctx context.Context, username, password, fullName string) (*auth.Session, error) {
	sess, err := a.auth.Signup(ctx, username, password, fullName)
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, sess)
}

func (a *App) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	sess, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return a.begin(ctx, sess)
}

// Logout stops the feed, marks the user offline and forgets the stored session.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	cur := a.current
	a.current = nil
	a.mu.Unlock()
	if cur == nil {
		return ErrNotSignedIn
	}
	a.stop(cur)
	if err := a.auth.Logout(ctx, cur.sess.User.ID); err != nil {
		a.log.Warn("logout", zap.Error(err))
	}
	if err := a.sessions.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.log.Info("signed out", zap.String("user_id", cur.sess.User.ID))
	return nil
}

// Close stops the running session without signing out.
func (a *App) Close() {
	a.mu.Lock()
	cur := a.current
	a.current = nil
	a.mu.Unlock()
	if cur != nil {
		a.stop(cur)
	}
}

// begin persists sess, replaces any running session and starts the manager.
func (a *App) begin(ctx context.Context, sess *auth.Session) (*auth.Session, error) {
	if err := a.sessions.Save(session.Saved{User: sess.User, Token: sess.Token}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	mgr := chat.NewManager(sess.User, a.svc, a.log, a.opts.Chat)
	runCtx, cancel := context.WithCancel(context.Background())
	sub, err := mgr.Subscribe(runCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	// a load failure leaves an empty view; the session itself stays usable
	if err := mgr.Load(ctx); err != nil {
		a.log.Warn("initial load failed", zap.Error(err))
	}

	next := &active{sess: sess, mgr: mgr, sub: sub, cancel: cancel}
	if a.opts.Heartbeat > 0 {
		next.beats.Add(1)
		go func() {
			defer next.beats.Done()
			a.heartbeat(runCtx, sess.User.ID)
		}()
	}
	a.mu.Lock()
	prev := a.current
	a.current = next
	a.mu.Unlock()
	if prev != nil {
		a.stop(prev)
	}
	a.log.Info("signed in", zap.String("user_id", sess.User.ID), zap.String("username", sess.User.Username))
	return sess, nil
}

// heartbeat keeps userID online until ctx ends.
func (a *App) heartbeat(ctx context.Context, userID string) {
	t := time.NewTicker(a.opts.Heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.auth.Heartbeat(ctx, userID); err != nil && ctx.Err() == nil {
				a.log.Warn("presence heartbeat", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
}

func (a *App) stop(cur *active) {
	cur.cancel()
	cur.beats.Wait()
	if err := cur.sub.Unsubscribe(); err != nil {
		a.log.Warn("unsubscribe feed", zap.Error(err))
	}
}

func (a *App) Session() (*auth.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil, ErrNotSignedIn
	}
	return a.current.sess, nil
}

// Manager returns the conversation manager of userID's running session.
func (a *App) Manager(userID string) (*chat.Manager, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil, ErrNotSignedIn
	}
	if a.current.sess.User.ID != userID {
		return nil, ErrWrongSession
	}
	return a.current.mgr, nil
}

// UpdateProfile changes the signed-in user's profile and refreshes the stored identity.
func (a *App) UpdateProfile(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error) {
	mgr, err := a.Manager(userID)
	if err != nil {
		return nil, err
	}
	u, err := a.svc.Users.UpdateUser(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	mgr.UpdateSelf(u)

	a.mu.Lock()
	if a.current != nil && a.current.sess.User.ID == userID {
		a.current.sess = &auth.Session{User: u.Clone(), Token: a.current.sess.Token}
		if err := a.sessions.Save(session.Saved{User: u, Token: a.current.sess.Token}); err != nil {
			a.log.Warn("save session", zap.Error(err))
		}
	}
	a.mu.Unlock()
	return u, nil
}

// UploadAvatar stores a square JPEG version of data as the user's avatar.
func (a *App) UploadAvatar(ctx context.Context, userID string, data []byte) (*domain.User, error) {
	if _, err := a.Manager(userID); err != nil {
		return nil, err
	}
	if a.svc.Objects == nil {
		return nil, chat.ErrNoObjectStorage
	}
	img, err := storage.Avatar(data)
	if err != nil {
		return nil, err
	}
	url, err := a.svc.Objects.Upload(ctx, storage.AvatarKey(userID), "image/jpeg", img)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	return a.UpdateProfile(ctx, userID, domain.UserUpdate{AvatarURL: &url})
}
