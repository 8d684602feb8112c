package session

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
)

// DefaultTTL is how long a login marker stays valid.
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidThreshold   = errors.New("humidity threshold must be between 0 and 100")
	ErrEmptyPatch         = errors.New("empty config patch")
)

// Service handles login state and configuration updates on top of the store.
type Service struct {
	store *store.Holder
	ttl   time.Duration
	now   func() time.Time
	log   *logrus.Entry
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option      { return func(s *Service) { s.ttl = ttl } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st *store.Holder, log *logrus.Entry, opts ...Option) *Service {
	s := &Service{store: st, ttl: DefaultTTL, now: time.Now, log: log}
	for _, o := range opts {
		o(s)
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	return s
}

// Authenticate checks username and password for an exact match.
func (s *Service) Authenticate(ctx context.Context, username, password string) (entities.User, bool) {
	data := s.store.Load(ctx)
	for _, u := range data.Users {
		if u.Username == username && u.Password == password {
			return u, true
		}
	}
	return entities.User{}, false
}

// Login writes the session marker when the credentials match.
func (s *Service) Login(ctx context.Context, username, password string) (entities.Session, error) {
	u, ok := s.Authenticate(ctx, username, password)
	if !ok {
		s.log.WithField("user", username).Warn("login rejected")
		return entities.Session{}, ErrInvalidCredentials
	}
	sess := entities.NewSession(u.Username, s.now().UnixMilli())
	s.store.SetSession(ctx, sess)
	s.log.WithField("user", u.Username).Info("login")
	return sess, nil
}

// Current returns the active session. An expired marker is deleted.
func (s *Service) Current(ctx context.Context) (entities.Session, bool) {
	sess, ok := s.store.Session(ctx)
	if !ok {
		return entities.Session{}, false
	}
	age := s.now().Sub(time.UnixMilli(sess.Timestamp))
	if age >= s.ttl {
		s.log.WithField("user", sess.User).Info("session expired")
		s.store.ClearSession(ctx)
		return entities.Session{}, false
	}
	return sess, true
}

func (s *Service) Logout(ctx context.Context) {
	s.store.ClearSession(ctx)
}

// UpdateConfig merges patch into the stored config and returns the result.
func (s *Service) UpdateConfig(ctx context.Context, patch entities.ConfigPatch) (entities.SystemConfig, error) {
	if patch.Empty() {
		return entities.SystemConfig{}, ErrEmptyPatch
	}
	if t := patch.HumidityThreshold; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 100) {
		return entities.SystemConfig{}, errors.Wrapf(ErrInvalidThreshold, "got %v", *t)
	}
	now := s.now()
	data := s.store.Transact(ctx, func(d *entities.SystemData) bool {
		d.Config.Apply(patch, now)
		return true
	})
	s.log.WithField("config", data.Config).Debug("config updated")
	return data.Config, nil
}

// Config returns the stored config.
func (s *Service) Config(ctx context.Context) entities.SystemConfig {
	return s.store.Load(ctx).Config
}
