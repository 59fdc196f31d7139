package module

import (
	"time"

	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/validate"
)

const defaultAPIURL = "https://common-api.wildberries.ru/api/v1/tariffs/box"

// Options holds the tariffs module settings
type Options struct {
	APIURL     string        `env:"TARIFFS_API_URL" validate:"required,url"`
	APIKey     string        `env:"TARIFFS_API_KEY" validate:"required"`
	APITimeout time.Duration `env:"TARIFFS_API_TIMEOUT" validate:"min=1s"`
	APIRetries int           `env:"TARIFFS_API_RETRIES" validate:"min=0,max=10"`
	RetryBase  time.Duration `env:"TARIFFS_API_RETRY_BASE" validate:"min=10ms"`

	// Location is where "today" is computed for the source query
	Location *time.Location `env:"CORE_TARIFFS_TIMEZONE" validate:"required"`

	// per record transaction budget
	LockTimeout      time.Duration `env:"CORE_TARIFFS_LOCK_TIMEOUT"`
	StatementTimeout time.Duration `env:"CORE_TARIFFS_STATEMENT_TIMEOUT"`
}

// FromConfig reads TARIFFS_API_* and CORE_TARIFFS_*
func FromConfig(cfg config.Conf) Options {
	api := cfg.Prefix("TARIFFS_API_")
	core := cfg.Prefix("CORE_TARIFFS_")
	return Options{
		APIURL:           api.MayURL("URL", defaultAPIURL).String(),
		APIKey:           api.MayString("KEY", ""),
		APITimeout:       api.MayDuration("TIMEOUT", 30*time.Second),
		APIRetries:       api.MayInt("RETRIES", 3),
		RetryBase:        api.MayDuration("RETRY_BASE", time.Second),
		Location:         core.MayLocation("TIMEZONE", "Local"),
		LockTimeout:      core.MayDuration("LOCK_TIMEOUT", 5*time.Second),
		StatementTimeout: core.MayDuration("STATEMENT_TIMEOUT", 15*time.Second),
	}
}

// Validate checks the resolved options
func (o Options) Validate() error { return validate.Struct(o) }
