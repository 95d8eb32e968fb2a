package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck probes one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Healthy   bool            `json:"healthy"`
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checkedAt"`
}

var (
	currentHealth = HealthStatus{Healthy: true, Checks: map[string]bool{}}
	healthMu      sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	checks := make(map[string]bool, len(currentHealth.Checks))
	for k, v := range currentHealth.Checks {
		checks[k] = v
	}
	st := currentHealth
	st.Checks = checks
	return st
}

// RunHealthChecks probes every dependency once and stores the snapshot.
func RunHealthChecks(ctx context.Context, checks map[string]HealthCheck) HealthStatus {
	st := HealthStatus{Healthy: true, Checks: make(map[string]bool, len(checks)), CheckedAt: time.Now()}
	for name, check := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(probeCtx)
		cancel()
		st.Checks[name] = err == nil
		if err != nil {
			st.Healthy = false
			GetLogger().Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
	}

	healthMu.Lock()
	currentHealth = st
	healthMu.Unlock()
	return st
}

// StartHealthMonitor checks immediately and then every interval until ctx ends.
func StartHealthMonitor(ctx context.Context, interval time.Duration, checks map[string]HealthCheck) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			RunHealthChecks(ctx, checks)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
