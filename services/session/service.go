// Package session resolves scanned session ids against the backend, keeps
// them cached, and tracks their time-bounded validity.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"atpkiosk/models"
	"atpkiosk/services/task"
	"atpkiosk/utils"

	"go.uber.org/zap"
)

// DefaultSessionService fetches each session once and serves repeats from
// its cache.
type DefaultSessionService struct {
	backend  Backend
	cache    Cache
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	// fetchMu serializes cache misses so a session is fetched at most once.
	fetchMu sync.Mutex
}

// NewSessionService builds the store. A nil cache defaults to memory and a
// non-positive interval to one second.
func NewSessionService(backend Backend, cache Cache, interval time.Duration, logger *zap.Logger) *DefaultSessionService {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultSessionService{
		backend:  backend,
		cache:    cache,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// IsExpired reports whether s has lapsed at now.
func IsExpired(s models.Session, now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining is the validity left at now, never negative.
func Remaining(s models.Session, now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (s *DefaultSessionService) FetchSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, utils.NewCodedError(utils.KindInvalidInput, "InvalidSessionID", "Invalid session ID")
	}

	if cached, ok := s.lookup(ctx, sessionID); ok {
		return cached, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if cached, ok := s.lookup(ctx, sessionID); ok {
		return cached, nil
	}

	fetched, err := s.backend.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, *fetched); err != nil {
		s.logger.Warn("session cache write failed", zap.String("sessionID", sessionID), zap.Error(err))
	}
	s.logger.Info("session loaded",
		zap.String("sessionID", sessionID),
		zap.String("printer", fetched.PrinterName),
		zap.Time("expiresAt", fetched.ExpiresAt))
	out := *fetched
	return &out, nil
}

// lookup treats cache errors as misses; the backend stays the source of truth.
func (s *DefaultSessionService) lookup(ctx context.Context, sessionID string) (*models.Session, bool) {
	cached, found, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session cache read failed", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, false
	}
	return cached, found
}

// StartCountdown reports the time left on sess immediately and then every
// interval. At expiry it reports once with Expired set and stops itself.
func (s *DefaultSessionService) StartCountdown(ctx context.Context, sess models.Session, onTick TickFunc) *task.Handle {
	return task.Go(ctx, s.logger, "countdown:"+sess.SessionID, func(ctx context.Context) {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			now := s.now()
			remaining := Remaining(sess, now)
			expired := IsExpired(sess, now)
			select {
			case <-ctx.Done():
				return
			default:
			}
			onTick(Tick{
				Remaining: remaining,
				Label:     utils.FormatTimeRemaining(sess.ExpiresAt, now),
				Expired:   expired,
			})
			if expired {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}
