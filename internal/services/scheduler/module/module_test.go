package module

import (
	"context"
	"testing"
	"time"

	"tariffsync/internal/modkit"
	"tariffsync/internal/platform/config"
	perr "tariffsync/internal/platform/errors"
	tdomain "tariffsync/internal/services/tariffs/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCycle struct{}

func (nopCycle) RunCycle(context.Context) (tdomain.CycleResult, error) {
	return tdomain.CycleResult{CycleID: "c1"}, nil
}

func TestFromConfig(t *testing.T) {
	o := FromConfig(config.New())
	assert.Equal(t, time.Hour, o.Interval)
	assert.Equal(t, 10*time.Minute, o.LeaseTTL)

	t.Setenv("CORE_SCHEDULER_INTERVAL", "15m")
	assert.Equal(t, 15*time.Minute, FromConfig(config.New()).Interval)
}

func TestNew_RejectsTinyInterval(t *testing.T) {
	t.Setenv("CORE_SCHEDULER_INTERVAL", "10ms")
	_, err := New(modkit.Deps{Cfg: config.New()}, nopCycle{})
	assert.Equal(t, perr.ErrorCodeValidation, perr.CodeOf(err))
}

func TestNew_TriggerPort(t *testing.T) {
	m, err := New(modkit.Deps{Cfg: config.New()}, nopCycle{})
	require.NoError(t, err)
	assert.Equal(t, "scheduler", m.Name())

	ports := m.Ports().(Ports)
	res, err := ports.Trigger.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CycleID)
	assert.Equal(t, "c1", m.Scheduler().Status().Last.CycleID)
}
