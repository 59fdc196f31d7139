package module

import (
	"time"

	"tariffsync/internal/adapters/kafka"
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/validate"
	"tariffsync/internal/services/propagation/domain"
)

// Options holds the propagation module settings
type Options struct {
	QueueDepth   int           `env:"CORE_PROPAGATION_QUEUE_DEPTH" validate:"min=1,max=1024"`
	DrainTimeout time.Duration `env:"CORE_PROPAGATION_DRAIN_TIMEOUT" validate:"min=1s"`

	// TargetsFile switches the registry from google_tables to a YAML file
	TargetsFile  string `env:"CORE_PROPAGATION_TARGETS_FILE" validate:"omitempty,file"`
	CacheTargets bool   `env:"CORE_PROPAGATION_CACHE_TARGETS"`

	Sheet    string         `env:"CORE_PROPAGATION_SHEET" validate:"required,max=100"`
	Location *time.Location `env:"CORE_PROPAGATION_TIMEZONE" validate:"required"`

	GoogleEmail      string        `env:"GOOGLE_SERVICE_ACCOUNT_EMAIL" validate:"omitempty,email"`
	GooglePrivateKey string        `env:"GOOGLE_PRIVATE_KEY"`
	GoogleTimeout    time.Duration `env:"GOOGLE_API_TIMEOUT"`
	UserEmail        string        `env:"USER_EMAIL" validate:"omitempty,email"`

	KafkaBrokers []string `env:"SERVICE_KAFKA_BROKERS" validate:"dive,hostname_port"`
	KafkaTopic   string   `env:"SERVICE_KAFKA_TOPIC"`
}

// FromConfig reads CORE_PROPAGATION_*, GOOGLE_*, USER_EMAIL and SERVICE_KAFKA_*
func FromConfig(cfg config.Conf) Options {
	core := cfg.Prefix("CORE_PROPAGATION_")
	google := cfg.Prefix("GOOGLE_")
	kf := cfg.Prefix("SERVICE_KAFKA_")
	return Options{
		QueueDepth:   core.MayInt("QUEUE_DEPTH", 16),
		DrainTimeout: core.MayDuration("DRAIN_TIMEOUT", 30*time.Second),
		TargetsFile:  core.MayString("TARGETS_FILE", ""),
		CacheTargets: core.MayBool("CACHE_TARGETS", true),
		Sheet:        core.MayString("SHEET", domain.DefaultSheet),
		Location:     core.MayLocation("TIMEZONE", "Europe/Moscow"),

		GoogleEmail:      google.MayString("SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey: google.MaySecret("PRIVATE_KEY"),
		GoogleTimeout:    google.MayDuration("API_TIMEOUT", 60*time.Second),
		UserEmail:        cfg.MayString("USER_EMAIL", ""),

		KafkaBrokers: kf.MayCSV("BROKERS", nil),
		KafkaTopic:   kf.MayString("TOPIC", kafka.DefaultTopic),
	}
}

// Validate checks the resolved options
func (o Options) Validate() error { return validate.Struct(o) }
