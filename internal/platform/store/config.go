package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled bool
	URL     string
}
