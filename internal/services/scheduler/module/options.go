package module

import (
	"time"

	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/validate"
)

// Options holds the scheduler settings
type Options struct {
	Interval time.Duration `env:"CORE_SCHEDULER_INTERVAL" validate:"min=1s"`
	LeaseTTL time.Duration `env:"CORE_SCHEDULER_LEASE_TTL" validate:"min=1s"`
	LeaseKey string        `env:"CORE_SCHEDULER_LEASE_KEY" validate:"required"`
}

// FromConfig reads CORE_SCHEDULER_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_SCHEDULER_")
	return Options{
		Interval: c.MayDuration("INTERVAL", time.Hour),
		LeaseTTL: c.MayDuration("LEASE_TTL", 10*time.Minute),
		LeaseKey: c.MayString("LEASE_KEY", "tariffsync:cycle"),
	}
}

// Validate checks the resolved options
func (o Options) Validate() error { return validate.Struct(o) }
