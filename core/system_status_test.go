package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectSystemStatus(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	st := CollectSystemStatus(context.Background(), map[string]HealthProbe{"redis": ok, "postgres": ok}, time.Now().Add(-time.Minute))
	assert.True(t, st.Healthy())
	assert.Equal(t, map[string]string{"redis": "ok", "postgres": "ok"}, st.Checks)
	assert.GreaterOrEqual(t, st.UptimeSeconds, int64(59))

	st = CollectSystemStatus(context.Background(), map[string]HealthProbe{"redis": ok, "postgres": down}, time.Time{})
	assert.False(t, st.Healthy())
	assert.Equal(t, "connection refused", st.Checks["postgres"])
	assert.Zero(t, st.UptimeSeconds)
}

func TestParseKiBLine(t *testing.T) {
	assert.Equal(t, uint64(16318412), parseKiBLine("MemTotal:       16318412 kB"))
	assert.Zero(t, parseKiBLine("MemTotal:"))
	assert.Zero(t, parseKiBLine("MemTotal: lots kB"))
}
