package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHealthChecks(t *testing.T) {
	st := RunHealthChecks(context.Background(), map[string]HealthCheck{
		"backend": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})
	assert.False(t, st.Healthy)
	assert.Equal(t, map[string]bool{"backend": true, "redis": false}, st.Checks)

	stored := GetHealthStatus()
	assert.Equal(t, st.Checks, stored.Checks)
	stored.Checks["backend"] = false
	assert.True(t, GetHealthStatus().Checks["backend"], "snapshot must not alias the stored map")
}

func TestStartHealthMonitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 8)
	StartHealthMonitor(ctx, 10*time.Millisecond, map[string]HealthCheck{
		"backend": func(context.Context) error {
			select {
			case calls <- struct{}{}:
			default:
			}
			return nil
		},
	})
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			require.FailNow(t, "health monitor did not run")
		}
	}
	assert.True(t, GetHealthStatus().Healthy)
}
