// Package auth registers users and signs them in against the data service.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

const (
	UserCodeLen    = 10
	minPasswordLen = 6
	codeAttempts   = 5
)

var (
	ErrInvalidUsername    = errors.New("username must be 3-32 letters, digits, '.' or '_'")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCodeExhausted      = errors.New("could not allocate a unique user code")
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.]{3,32}$`)

// Presence is told when users come and go.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

type Options struct {
	BcryptCost int
	Presence   Presence
}

type Service struct {
	users    dataservice.Users
	tokens   *TokenIssuer
	presence Presence
	cost     int
	log      *zap.Logger
	now      func() time.Time
}

func NewService(users dataservice.Users, tokens *TokenIssuer, log *zap.Logger, opts Options) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		presence: opts.Presence,
		cost:     opts.BcryptCost,
		log:      logger.OrNop(log),
		now:      utils.NowUTC,
	}
}

// Session is a signed-in user and their token.
type Session struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func ValidateCredentials(username, password string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// Signup creates an account with a fresh user code and signs it in.
func (s *Service) Signup(ctx context.Context, username, password, fullName string) (*Session, error) {
	username = strings.TrimSpace(username)
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, dataservice.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Username:     username,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    s.now(),
	}
	for attempt := 0; ; attempt++ {
		if attempt == codeAttempts {
			return nil, ErrCodeExhausted
		}
		code, err := s.freeCode(ctx)
		if err != nil {
			return nil, err
		}
		u.UserCode = code
		err = s.users.CreateUser(ctx, u)
		if err == nil {
			break
		}
		if !errors.Is(err, dataservice.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// either the name was taken meanwhile or the code collided
		if _, ferr := s.users.FindByUsername(ctx, username); ferr == nil {
			return nil, ErrUsernameTaken
		}
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return s.start(ctx, u)
}

// freeCode draws random user codes until one is unused.
func (s *Service) freeCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := NewUserCode()
		if err != nil {
			return "", err
		}
		_, err = s.users.FindByCode(ctx, code)
		if errors.Is(err, dataservice.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("lookup user code: %w", err)
		}
	}
	return "", ErrCodeExhausted
}

// NewUserCode returns a random UserCodeLen digit code.
func NewUserCode() (string, error) {
	max := big.NewInt(10)
	var b strings.Builder
	for i := 0; i < UserCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, dataservice.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.start(ctx, u)
}

// Resume validates a stored token and returns the current record of its user.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, dataservice.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u = s.markOnline(ctx, u, true)
	return &Session{User: u, Token: token}, nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	s.markOnline(ctx, &domain.User{ID: userID}, false)
	return nil
}

// Heartbeat renews userID's online presence before its entry expires.
func (s *Service) Heartbeat(ctx context.Context, userID string) error {
	if s.presence == nil {
		return nil
	}
	if err := s.presence.SetOnline(ctx, userID); err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	return nil
}

func (s *Service) start(ctx context.Context, u *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	u = s.markOnline(ctx, u, true)
	return &Session{User: u, Token: token}, nil
}

// markOnline records the online flag. Failures are logged only; presence is advisory.
func (s *Service) markOnline(ctx context.Context, u *domain.User, online bool) *domain.User {
	now := s.now()
	updated, err := s.users.UpdateUser(ctx, u.ID, domain.UserUpdate{IsOnline: &online, LastSeen: &now})
	if err != nil {
		s.log.Warn("update online flag", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		u = updated
	}
	if s.presence != nil {
		var perr error
		if online {
			perr = s.presence.SetOnline(ctx, u.ID)
		} else {
			perr = s.presence.SetOffline(ctx, u.ID)
		}
		if perr != nil {
			s.log.Warn("update presence", zap.String("user_id", u.ID), zap.Error(perr))
		}
	}
	return u
}
