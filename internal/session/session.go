// Package session holds the authenticated principal of the running client and
// notifies subscribers when it changes.
package session

import (
	"errors"
	"sync"
	"time"

	"taskspace/internal/domain"
	"taskspace/pkg/jwt"

	"github.com/rs/zerolog"
)

var ErrInvalidCredentials = errors.New("invalid or expired token")

// Listener is called after the principal changed. prev and next are nil when
// no principal was signed in before or after the change.
type Listener func(prev, next *domain.User)

type Session struct {
	mu        sync.RWMutex
	user      *domain.User
	secret    string
	ttl       time.Duration
	logger    zerolog.Logger
	listeners map[int]Listener
	order     []int
	nextID    int
}

// New returns a signed-out session. ttl is the lifetime of tokens handed out
// by Issue.
func New(jwtSecret string, ttl time.Duration, logger zerolog.Logger) *Session {
	return &Session{
		secret:    jwtSecret,
		ttl:       ttl,
		logger:    logger.With().Str("component", "session").Logger(),
		listeners: make(map[int]Listener),
	}
}

// CurrentUser returns a copy of the principal, or nil when signed out.
func (s *Session) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login validates token and makes its subject the current principal.
func (s *Session) Login(token string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(token, s.secret)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	user := &domain.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
	}
	s.SetUser(user)

	s.logger.Info().Str("user_id", user.ID).Msg("logged in")
	return s.CurrentUser(), nil
}

// Issue signs a token for userID that Login accepts until it expires. It does
// not change the current principal.
func (s *Session) Issue(userID, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	token, err := jwt.GenerateToken(userID, email, s.ttl, s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Debug().Str("user_id", userID).Time("expires_at", expiresAt).Msg("issued token")
	return token, expiresAt, nil
}

func (s *Session) Logout() {
	if s.CurrentUser() == nil {
		return
	}
	s.SetUser(nil)
	s.logger.Info().Msg("logged out")
}

// SetUser replaces the principal. Listeners run only when the principal id
// changes, synchronously and in subscription order.
func (s *Session) SetUser(user *domain.User) {
	s.mu.Lock()
	prev := s.user
	if user != nil {
		u := *user
		user = &u
	}
	s.user = user
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	if sameUser(prev, user) {
		return
	}

	for _, l := range listeners {
		l(copyUser(prev), copyUser(user))
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Session) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func sameUser(a, b *domain.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
