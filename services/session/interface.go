package session

import (
	"context"
	"time"

	"atpkiosk/models"
	"atpkiosk/services/task"
)

// SessionService resolves scanned session ids and tracks their validity.
type SessionService interface {
	FetchSession(ctx context.Context, sessionID string) (*models.Session, error)
	StartCountdown(ctx context.Context, s models.Session, onTick TickFunc) *task.Handle
}

// Backend is the part of the gateway the session store needs.
type Backend interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
}

// Cache keeps fetched sessions. Get reports a miss with found == false.
type Cache interface {
	Get(ctx context.Context, sessionID string) (s *models.Session, found bool, err error)
	Put(ctx context.Context, s models.Session) error
}

// Tick is one countdown report.
type Tick struct {
	Remaining time.Duration
	Label     string
	Expired   bool
}

// TickFunc receives countdown ticks.
type TickFunc func(Tick)
